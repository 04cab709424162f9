/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
	transporthttp "github.com/agoralab/agora-framework-go/pkg/comm/transport/http"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport/ws"
	"github.com/agoralab/agora-framework-go/pkg/controller/rest"
	"github.com/agoralab/agora-framework-go/pkg/directory"
	"github.com/agoralab/agora-framework-go/pkg/framework/agent"
	fwcontext "github.com/agoralab/agora-framework-go/pkg/framework/context"
	"github.com/agoralab/agora-framework-go/pkg/ledger/inmem"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation/buyer"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation/seller"
	"github.com/agoralab/agora-framework-go/pkg/storage/mem"
)

var logger = log.New("agora-agent/startcmd")

const (
	agentHostFlagName  = "api-host"
	agentHostEnvKey    = "AGORA_API_HOST"
	agentHostFlagUsage = "Host name:port to serve the controller API on." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	agentInboundHostFlagName  = "inbound-host"
	agentInboundHostEnvKey    = "AGORA_INBOUND_HOST"
	agentInboundHostFlagUsage = "Inbound host name:port the agent listens on." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	agentInboundHostExternalFlagName  = "inbound-host-external"
	agentInboundHostExternalEnvKey    = "AGORA_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagUsage = "Inbound host external url advertised to peers." +
		" Defaults to http://<inbound-host> if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	agentWSInboundHostFlagName  = "ws-inbound-host"
	agentWSInboundHostEnvKey    = "AGORA_WS_INBOUND_HOST"
	agentWSInboundHostFlagUsage = "Optional websocket inbound host name:port." +
		" Alternatively, this can be set with the following environment variable: " + agentWSInboundHostEnvKey

	agentRoleFlagName  = "role"
	agentRoleEnvKey    = "AGORA_ROLE"
	agentRoleFlagUsage = "Agent role: '" + roleSeller + "' or '" + roleBuyer + "'." +
		" Alternatively, this can be set with the following environment variable: " + agentRoleEnvKey

	agentAddressFlagName  = "address"
	agentAddressEnvKey    = "AGORA_ADDRESS"
	agentAddressFlagUsage = "The agent's ledger address." +
		" Alternatively, this can be set with the following environment variable: " + agentAddressEnvKey

	agentServiceIDFlagName  = "service-id"
	agentServiceIDEnvKey    = "AGORA_SERVICE_ID"
	agentServiceIDFlagUsage = "Id of the data service traded." +
		" Alternatively, this can be set with the following environment variable: " + agentServiceIDEnvKey

	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "AGORA_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level: CRITICAL, ERROR, WARNING, INFO or DEBUG." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey
)

const (
	roleSeller = "seller"
	roleBuyer  = "buyer"

	defaultLedgerID  = "devledger"
	defaultCurrency  = "FET"
	defaultServiceID = "generic_data"

	defaultUnitPrice       = 10
	defaultMaxUnitPrice    = 20
	defaultMaxTxFee        = 10
	defaultMaxNegotiations = 2
	defaultInitialBalance  = 100000

	tickInterval = time.Second
)

// server interface is used to mock the http server in tests.
type server interface {
	ListenAndServe(host string, router http.Handler) error
}

// HTTPServer is the actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go http server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler) error {
	return http.ListenAndServe(host, router)
}

type agentParameters struct {
	server              server
	host                string
	inboundHost         string
	inboundHostExternal string
	wsInboundHost       string
	role                string
	address             string
	serviceID           string
	logLevel            string
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd(srv server) *cobra.Command {
	startCmd := createStartCmd(srv)
	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agora trading agent",
		Long:  "Start an agora trading agent with a controller API",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			inboundHost, err := getUserSetVar(cmd, agentInboundHostFlagName, agentInboundHostEnvKey, false)
			if err != nil {
				return err
			}

			inboundHostExternal, err := getUserSetVar(cmd, agentInboundHostExternalFlagName,
				agentInboundHostExternalEnvKey, true)
			if err != nil {
				return err
			}

			wsInboundHost, err := getUserSetVar(cmd, agentWSInboundHostFlagName, agentWSInboundHostEnvKey, true)
			if err != nil {
				return err
			}

			role, err := getUserSetVar(cmd, agentRoleFlagName, agentRoleEnvKey, false)
			if err != nil {
				return err
			}

			address, err := getUserSetVar(cmd, agentAddressFlagName, agentAddressEnvKey, false)
			if err != nil {
				return err
			}

			serviceID, err := getUserSetVar(cmd, agentServiceIDFlagName, agentServiceIDEnvKey, true)
			if err != nil {
				return err
			}

			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:              srv,
				host:                host,
				inboundHost:         inboundHost,
				inboundHostExternal: inboundHostExternal,
				wsInboundHost:       wsInboundHost,
				role:                role,
				address:             address,
				serviceID:           serviceID,
				logLevel:            logLevel,
			}

			return startAgent(parameters)
		},
	}
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(agentHostFlagName, "a", "", agentHostFlagUsage)
	startCmd.Flags().StringP(agentInboundHostFlagName, "i", "", agentInboundHostFlagUsage)
	startCmd.Flags().StringP(agentInboundHostExternalFlagName, "e", "", agentInboundHostExternalFlagUsage)
	startCmd.Flags().StringP(agentWSInboundHostFlagName, "w", "", agentWSInboundHostFlagUsage)
	startCmd.Flags().StringP(agentRoleFlagName, "r", "", agentRoleFlagUsage)
	startCmd.Flags().StringP(agentAddressFlagName, "d", "", agentAddressFlagUsage)
	startCmd.Flags().StringP(agentServiceIDFlagName, "s", "", agentServiceIDFlagUsage)
	startCmd.Flags().StringP(agentLogLevelFlagName, "l", "", agentLogLevelFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf("%s flag not found: %s", flagName, err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)
	if isOptional || isSet {
		return value, nil
	}

	return "", fmt.Errorf("Neither %s (command line flag) nor %s (environment variable) have been set.",
		flagName, envKey)
}

func startAgent(parameters *agentParameters) error {
	if parameters.logLevel != "" {
		level, err := log.ParseLevel(parameters.logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %s: %w", parameters.logLevel, err)
		}

		log.SetLevel("", level)
	}

	if parameters.serviceID == "" {
		parameters.serviceID = defaultServiceID
	}

	if parameters.inboundHostExternal == "" {
		parameters.inboundHostExternal = "http://" + parameters.inboundHost
	}

	a, dialogues, err := buildAgent(parameters)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("agent start failed: %w", err)
	}

	handler := cors.Default().Handler(rest.New(dialogues).Router())

	logger.Infof("starting %s agent %s, controller API on %s", parameters.role, parameters.address, parameters.host)

	err = parameters.server.ListenAndServe(parameters.host, handler)
	if err != nil {
		return fmt.Errorf("controller API server closed unexpectedly: %s", err)
	}

	return nil
}

// buildAgent wires the agent for the requested role. Storage, ledger and
// directory are the in-memory development implementations; production
// deployments provide real ones.
func buildAgent(parameters *agentParameters) (*agent.Agent, *negotiation.Dialogues, error) {
	book := dispatcher.NewAddressBook()

	outboundHTTP, err := transporthttp.NewOutbound(transporthttp.WithOutboundHTTPClient(&http.Client{}))
	if err != nil {
		return nil, nil, err
	}

	outbound := dispatcher.NewOutbound(book,
		[]transport.OutboundTransport{outboundHTTP, ws.NewOutbound()},
		dispatcher.WithReplyTo(parameters.inboundHostExternal))

	inboundHTTP, err := transporthttp.NewInbound(parameters.inboundHost, parameters.inboundHostExternal)
	if err != nil {
		return nil, nil, err
	}

	inbounds := []transport.InboundTransport{inboundHTTP}

	if parameters.wsInboundHost != "" {
		inboundWS, err := ws.NewInbound(parameters.wsInboundHost, "ws://"+parameters.wsInboundHost)
		if err != nil {
			return nil, nil, err
		}

		inbounds = append(inbounds, inboundWS)
	}

	devledger := inmem.New(defaultLedgerID, map[string]uint64{parameters.address: defaultInitialBalance})
	dir := directory.NewInMemory()

	provider := fwcontext.New(
		fwcontext.WithOutboundDispatcher(outbound),
		fwcontext.WithStorageProvider(mem.NewProvider()),
		fwcontext.WithLedgerGateway(devledger),
		fwcontext.WithLedgerSigner(devledger),
		fwcontext.WithDirectory(dir),
		fwcontext.WithEndpointRegistry(book),
	)

	opts := []agent.Option{
		agent.WithAddressBook(book),
		agent.WithTickInterval(tickInterval),
	}

	for _, in := range inbounds {
		opts = append(opts, agent.WithInboundTransport(in))
	}

	switch parameters.role {
	case roleSeller:
		return buildSellerAgent(parameters, provider, dir, opts)
	case roleBuyer:
		return buildBuyerAgent(parameters, provider, opts)
	default:
		return nil, nil, fmt.Errorf("invalid role %q, expected %q or %q", parameters.role, roleSeller, roleBuyer)
	}
}

func buildSellerAgent(parameters *agentParameters, provider *fwcontext.Provider,
	dir directory.Service, opts []agent.Option) (*agent.Agent, *negotiation.Dialogues, error) {
	strategy, err := seller.NewStrategy(seller.Config{
		ServiceID:  parameters.serviceID,
		LedgerID:   defaultLedgerID,
		Currency:   defaultCurrency,
		UnitPrice:  defaultUnitPrice,
		Address:    parameters.address,
		IsLedgerTx: true,
		DataSource: rowCounter(),
	})
	if err != nil {
		return nil, nil, err
	}

	svc, err := seller.New(provider, strategy)
	if err != nil {
		return nil, nil, err
	}

	registrar := directory.NewRegistrar(dir, &directory.Description{
		ServiceID: parameters.serviceID,
		Address:   parameters.address,
		Endpoint:  parameters.inboundHostExternal,
	})

	opts = append(opts,
		agent.WithMessageService(svc),
		agent.WithRegistrar(registrar),
	)

	a, err := agent.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	return a, svc.Dialogues(), nil
}

func buildBuyerAgent(parameters *agentParameters, provider *fwcontext.Provider,
	opts []agent.Option) (*agent.Agent, *negotiation.Dialogues, error) {
	strategy, err := buyer.NewStrategy(buyer.Config{
		ServiceID:       parameters.serviceID,
		LedgerID:        defaultLedgerID,
		Currency:        defaultCurrency,
		MaxUnitPrice:    defaultMaxUnitPrice,
		MaxTxFee:        defaultMaxTxFee,
		Address:         parameters.address,
		IsLedgerTx:      true,
		MaxNegotiations: defaultMaxNegotiations,
	})
	if err != nil {
		return nil, nil, err
	}

	svc, err := buyer.New(provider, strategy)
	if err != nil {
		return nil, nil, err
	}

	opts = append(opts,
		agent.WithMessageService(svc),
		agent.WithStarter(svc),
		agent.WithBehaviour(svc),
	)

	a, err := agent.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	return a, svc.Dialogues(), nil
}

// rowCounter returns a development data source producing numbered sample
// rows.
func rowCounter() func() map[string]string {
	var n int

	return func() map[string]string {
		n++

		return map[string]string{
			"row":   strconv.Itoa(n),
			"value": strconv.Itoa(n * 7),
		}
	}
}
