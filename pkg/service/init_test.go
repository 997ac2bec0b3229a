package service

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/free5gc/ocs/internal/charging"
	"github.com/free5gc/ocs/pkg/factory"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *factory.Config {
	return &factory.Config{
		Info: &factory.Info{Version: factory.OcsExpectedConfigVersion},
		Configuration: &factory.Configuration{
			OcsName: "OCS",
			Diameter: &factory.Diameter{
				OriginHost:  "ocs.test",
				OriginRealm: "test",
				BindingIPv4: "127.0.0.1",
				Port:        freePort(t),
			},
			Session: &factory.Session{Store: factory.SessionStoreMemory},
			Balance: &factory.Balance{
				DataSource:  factory.DataSourceLocal,
				Subscribers: []*factory.Subscriber{{Msisdn: "4790300123", Balance: 1000}},
			},
			Oam: &factory.Oam{BindingIPv4: "127.0.0.1", Port: freePort(t)},
		},
		Logger: &factory.Logger{Enable: true, Level: "info"},
	}
}

func TestAppServesCreditControl(t *testing.T) {
	ocs, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.Equal(t, "ocs.test", ocs.Context().OriginHost)
	require.NotEmpty(t, ocs.Context().NodeId)

	num := uint32(0)
	ans, err := ocs.Engine().Process(context.Background(), &charging.Request{
		SessionID:     "gw;1",
		RequestType:   charging.Initial,
		RequestNumber: &num,
		Subscriber:    charging.Subscriber{MSISDN: "4790300123"},
		Contexts:      []charging.RatingContext{{RequestedUnits: 400}},
	})
	require.NoError(t, err)
	require.Equal(t, uint32(2001), ans.ResultCode)
	require.Equal(t, int64(400), ans.GrantedUnits())

	require.NoError(t, ocs.Start())
	require.NotNil(t, ocs.Diameter().Addr())
	ocs.Terminate()
	ocs.WaitRoutineStopped()
}
