package app

import (
	ocs_context "github.com/free5gc/ocs/internal/context"
	"github.com/free5gc/ocs/pkg/factory"
)

type App interface {
	SetLogEnable(enable bool)
	SetLogLevel(level string)
	SetReportCaller(reportCaller bool)

	Start() error
	Terminate()

	Context() *ocs_context.OCSContext
	Config() *factory.Config
}
