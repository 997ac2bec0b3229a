package context

import (
	"time"

	"github.com/fiorix/go-diameter/diam/datatype"
	"github.com/fiorix/go-diameter/diam/sm"
)

var ocsCtx *OCSContext

func init() {
	ocsCtx = new(OCSContext)
	ocsCtx.Name = "ocs"
}

type OCSContext struct {
	NodeId string
	Name   string

	OriginHost      string
	OriginRealm     string
	VendorId        uint32
	ProductName     string
	DiameterNetwork string
	DiameterAddr    string
	DiameterCfg     *sm.Settings

	OamAddr string

	DefaultBucketSize   int64
	DefaultValidityTime uint32
	SessionTTL          time.Duration
	RequestTimeout      time.Duration
}

func OCS_Self() *OCSContext {
	return ocsCtx
}

// BuildDiameterSettings derives the CER/CEA identity from the context. The
// Origin-State-Id changes on every start so peers notice the restart.
func (c *OCSContext) BuildDiameterSettings(start time.Time) *sm.Settings {
	c.DiameterCfg = &sm.Settings{
		OriginHost:       datatype.DiameterIdentity(c.OriginHost),
		OriginRealm:      datatype.DiameterIdentity(c.OriginRealm),
		VendorID:         datatype.Unsigned32(c.VendorId),
		ProductName:      datatype.UTF8String(c.ProductName),
		OriginStateID:    datatype.Unsigned32(start.Unix()),
		FirmwareRevision: 1,
	}
	return c.DiameterCfg
}
