package logger

import (
	"io"
	"os"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"

	logger_util "github.com/free5gc/util/logger"
)

var (
	Log        *logrus.Logger
	MainLog    *logrus.Entry
	InitLog    *logrus.Entry
	CfgLog     *logrus.Entry
	CtxLog     *logrus.Entry
	UtilLog    *logrus.Entry
	DiamLog    *logrus.Entry
	CcrLog     *logrus.Entry
	QuotaLog   *logrus.Entry
	BalanceLog *logrus.Entry
	StoreLog   *logrus.Entry
	SessLog    *logrus.Entry
	OamLog     *logrus.Entry
	GinLog     *logrus.Entry
)

func init() {
	Log = logrus.New()
	Log.SetReportCaller(false)

	Log.Formatter = &formatter.Formatter{
		TimestampFormat: time.RFC3339,
		TrimMessages:    true,
		NoFieldsSpace:   true,
		HideKeys:        true,
		FieldsOrder:     []string{"component", "category", "session"},
	}

	MainLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Main"})
	InitLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Init"})
	CfgLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "CFG"})
	CtxLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Context"})
	UtilLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Util"})
	DiamLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Diameter"})
	CcrLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "CCR"})
	QuotaLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Quota"})
	BalanceLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Balance"})
	StoreLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Store"})
	SessLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "Session"})
	OamLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "OAM"})
	GinLog = Log.WithFields(logrus.Fields{"component": "OCS", "category": "GIN"})
}

func SetLogLevel(level logrus.Level) {
	Log.SetLevel(level)
}

func SetReportCaller(enable bool) {
	Log.SetReportCaller(enable)
}

func SetLogEnable(enable bool) {
	if enable {
		Log.SetOutput(os.Stderr)
	} else {
		Log.SetOutput(io.Discard)
	}
}

// LogFileHook adds ocs.log under logPath. Entries keep going to stderr too.
func LogFileHook(logPath string) error {
	if logPath == "" {
		return nil
	}
	fullPath, err := logger_util.CreateNfLogFile(logPath, "ocs.log")
	if err != nil {
		return err
	}
	selfLogHook, hookErr := logger_util.NewFileHook(fullPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o666)
	if hookErr != nil {
		return hookErr
	}
	Log.Hooks.Add(selfLogHook)
	return nil
}
