/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
)

var logger = log.New("agora-framework/http")

const commContentType = "application/json"

// OutboundHTTPOpt is an outbound HTTP transport option.
type OutboundHTTPOpt func(opts *outboundOpts)

type outboundOpts struct {
	client *http.Client
}

// WithOutboundHTTPClient option is for creating an outbound transport with a
// custom http client.
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundOpts) {
		opts.client = client
	}
}

// OutboundHTTPClient is an outbound transport that posts message envelopes
// over HTTP.
type OutboundHTTPClient struct {
	client *http.Client
}

// NewOutbound creates a new instance of the outbound HTTP transport.
func NewOutbound(opts ...OutboundHTTPOpt) (*OutboundHTTPClient, error) {
	clOpts := &outboundOpts{}

	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		return nil, errors.New("creation of outbound transport requires an HTTP client")
	}

	return &OutboundHTTPClient{client: clOpts.client}, nil
}

// Send sends the payload to the given http endpoint.
func (cs *OutboundHTTPClient) Send(payload []byte, endpoint string) (string, error) {
	resp, err := cs.client.Post(endpoint, commContentType, bytes.NewBuffer(payload))
	if err != nil {
		return "", errors.Wrapf(err, "posting message to %s failed", endpoint)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Errorf("failed to close response body: %v", e)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", errors.Errorf("received unsuccessful POST HTTP status from %s: %s", endpoint, resp.Status)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading response body failed")
	}

	return string(body), nil
}

// AcceptEndpoint checks for the url scheme.
func (cs *OutboundHTTPClient) AcceptEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}
