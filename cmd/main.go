/*
 * OCS Main Function
 */

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/urfave/cli"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
	"github.com/free5gc/ocs/pkg/service"
)

func main() {
	defer func() {
		if p := recover(); p != nil {
			// Print stack for panic to log. Fatalf() will let program exit.
			logger.MainLog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
		}
	}()

	app := cli.NewApp()
	app.Name = "ocs"
	app.Usage = "Online Charging System, Diameter Credit-Control server"
	app.Action = action
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "log, l",
			Usage: "Output log directory, overrides logger.file",
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.MainLog.Errorf("OCS Run Error: %v\n", err)
	}
}

func action(cliCtx *cli.Context) error {
	logger.MainLog.Infoln("OCS version: ", factory.OcsExpectedConfigVersion)

	cfg, err := factory.ReadConfig(cliCtx.String("config"))
	if err != nil {
		return err
	}
	if logDir := cliCtx.String("log"); logDir != "" {
		abs, absErr := filepath.Abs(logDir)
		if absErr != nil {
			return absErr
		}
		cfg.SetLogFile(abs)
	}
	factory.OcsConfig = cfg

	ocs, err := service.NewApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	if err := ocs.Start(); err != nil {
		ocs.Terminate()
		return err
	}
	ocs.WaitRoutineStopped()
	return nil
}
