// Package avps reads and builds AVPs by numeric code.
package avps

import (
	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/avp"
	"github.com/fiorix/go-diameter/diam/datatype"
)

// Find returns the first AVP with code c, nil when absent.
func Find(list []*diam.AVP, c uint32) *diam.AVP {
	for _, a := range list {
		if a != nil && a.Code == c {
			return a
		}
	}
	return nil
}

func FindAll(list []*diam.AVP, c uint32) []*diam.AVP {
	var found []*diam.AVP
	for _, a := range list {
		if a != nil && a.Code == c {
			found = append(found, a)
		}
	}
	return found
}

// Group returns the children of a grouped AVP.
func Group(a *diam.AVP) []*diam.AVP {
	if a == nil {
		return nil
	}
	if g, ok := a.Data.(*diam.GroupedAVP); ok {
		return g.AVP
	}
	return nil
}

func Uint(a *diam.AVP) (uint64, bool) {
	if a == nil {
		return 0, false
	}
	switch v := a.Data.(type) {
	case datatype.Unsigned32:
		return uint64(v), true
	case datatype.Unsigned64:
		return uint64(v), true
	case datatype.Enumerated:
		if v >= 0 {
			return uint64(v), true
		}
	case datatype.Integer32:
		if v >= 0 {
			return uint64(v), true
		}
	case datatype.Integer64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

func Int(a *diam.AVP) (int64, bool) {
	if a == nil {
		return 0, false
	}
	switch v := a.Data.(type) {
	case datatype.Enumerated:
		return int64(v), true
	case datatype.Integer32:
		return int64(v), true
	case datatype.Integer64:
		return int64(v), true
	case datatype.Unsigned32:
		return int64(v), true
	case datatype.Unsigned64:
		if v <= 1<<63-1 {
			return int64(v), true
		}
	}
	return 0, false
}

func Text(a *diam.AVP) (string, bool) {
	if a == nil {
		return "", false
	}
	switch v := a.Data.(type) {
	case datatype.UTF8String:
		return string(v), true
	case datatype.OctetString:
		return string(v), true
	case datatype.DiameterIdentity:
		return string(v), true
	}
	return "", false
}

func Unsigned32(c, v uint32) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, datatype.Unsigned32(v))
}

func Unsigned64(c uint32, v uint64) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, datatype.Unsigned64(v))
}

func Enumerated(c uint32, v int32) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, datatype.Enumerated(v))
}

func UTF8String(c uint32, v string) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, datatype.UTF8String(v))
}

func Identity(c uint32, v string) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, datatype.DiameterIdentity(v))
}

func Grouped(c uint32, children ...*diam.AVP) *diam.AVP {
	return diam.NewAVP(c, avp.Mbit, 0, &diam.GroupedAVP{AVP: children})
}
