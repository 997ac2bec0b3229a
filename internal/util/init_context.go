package util

import (
	"time"

	"github.com/google/uuid"

	"github.com/free5gc/ocs/internal/context"
	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
)

const defaultProductName = "free5gc-ocs"

// Init OCS Context from config file
func InitOcsContext(ctx *context.OCSContext, config *factory.Config) {
	logger.UtilLog.Infof("ocsconfig Info: Version[%s] Description[%s]", config.Info.Version, config.Info.Description)
	configuration := config.Configuration
	ctx.NodeId = uuid.New().String()
	if configuration.OcsName != "" {
		ctx.Name = configuration.OcsName
	}

	ctx.ProductName = defaultProductName
	if d := configuration.Diameter; d != nil {
		ctx.OriginHost = d.OriginHost
		ctx.OriginRealm = d.OriginRealm
		ctx.VendorId = d.VendorId
		if d.ProductName != "" {
			ctx.ProductName = d.ProductName
		}
	}
	ctx.DiameterNetwork = config.GetDiameterNetwork()
	ctx.DiameterAddr = config.GetDiameterBindingAddr()
	ctx.OamAddr = config.GetOamBindingAddr()

	ctx.DefaultBucketSize = config.GetDefaultBucketSize()
	ctx.DefaultValidityTime = config.GetDefaultValidityTime()
	ctx.SessionTTL = config.GetSessionTTL()
	ctx.RequestTimeout = config.GetRequestTimeout()

	ctx.BuildDiameterSettings(time.Now())
	logger.UtilLog.Infof("OCS node [%s] origin [%s/%s] diameter [%s %s]",
		ctx.NodeId, ctx.OriginHost, ctx.OriginRealm, ctx.DiameterNetwork, ctx.DiameterAddr)
}
