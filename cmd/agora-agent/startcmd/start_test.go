/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockServer struct {
	host   string
	router http.Handler
}

func (s *mockServer) ListenAndServe(host string, router http.Handler) error {
	s.host = host
	s.router = router

	return nil
}

func randomAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	return addr
}

func TestStartCmdWithBlankHostArg(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	startCmd.SetArgs([]string{
		"--" + agentInboundHostFlagName, "localhost:8002",
		"--" + agentRoleFlagName, roleSeller,
		"--" + agentAddressFlagName, "seller_addr",
	})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Equal(t,
		"Neither api-host (command line flag) nor AGORA_API_HOST (environment variable) have been set.",
		err.Error())
}

func TestStartCmdWithMissingInboundHostArg(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentRoleFlagName, roleSeller,
		"--" + agentAddressFlagName, "seller_addr",
	})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Equal(t,
		"Neither inbound-host (command line flag) nor AGORA_INBOUND_HOST (environment variable) have been set.",
		err.Error())
}

func TestStartCmdWithInvalidRole(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentInboundHostFlagName, randomAddr(t),
		"--" + agentRoleFlagName, "auctioneer",
		"--" + agentAddressFlagName, "some_addr",
	})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid role")
}

func TestStartCmdWithInvalidLogLevel(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentInboundHostFlagName, randomAddr(t),
		"--" + agentRoleFlagName, roleSeller,
		"--" + agentAddressFlagName, "seller_addr",
		"--" + agentLogLevelFlagName, "LOUD",
	})

	err := startCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")
}

func TestStartCmdSellerValidArgs(t *testing.T) {
	srv := &mockServer{}
	startCmd := GetStartCmd(srv)

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentInboundHostFlagName, randomAddr(t),
		"--" + agentRoleFlagName, roleSeller,
		"--" + agentAddressFlagName, "seller_addr",
		"--" + agentServiceIDFlagName, "weather_data",
		"--" + agentLogLevelFlagName, "DEBUG",
	})

	require.NoError(t, startCmd.Execute())
	require.Equal(t, "localhost:8001", srv.host)
	require.NotNil(t, srv.router)
}

func TestStartCmdBuyerValidArgs(t *testing.T) {
	srv := &mockServer{}
	startCmd := GetStartCmd(srv)

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentInboundHostFlagName, randomAddr(t),
		"--" + agentRoleFlagName, roleBuyer,
		"--" + agentAddressFlagName, "buyer_addr",
	})

	require.NoError(t, startCmd.Execute())
	require.Equal(t, "localhost:8001", srv.host)
	require.NotNil(t, srv.router)
}

func TestStartCmdEnvVars(t *testing.T) {
	srv := &mockServer{}
	startCmd := GetStartCmd(srv)

	t.Setenv(agentHostEnvKey, "localhost:8001")
	t.Setenv(agentInboundHostEnvKey, randomAddr(t))
	t.Setenv(agentRoleEnvKey, roleSeller)
	t.Setenv(agentAddressEnvKey, "seller_addr")

	require.NoError(t, startCmd.Execute())
	require.Equal(t, "localhost:8001", srv.host)
}

func TestStartCmdWSInbound(t *testing.T) {
	srv := &mockServer{}
	startCmd := GetStartCmd(srv)

	startCmd.SetArgs([]string{
		"--" + agentHostFlagName, "localhost:8001",
		"--" + agentInboundHostFlagName, randomAddr(t),
		"--" + agentWSInboundHostFlagName, randomAddr(t),
		"--" + agentRoleFlagName, roleSeller,
		"--" + agentAddressFlagName, "seller_addr",
	})

	require.NoError(t, startCmd.Execute())
}
