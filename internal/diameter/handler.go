package diameter

import (
	"context"

	"github.com/fiorix/go-diameter/diam"

	"github.com/free5gc/ocs/internal/charging"
	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/internal/metrics"
)

type Processor interface {
	Process(ctx context.Context, req *charging.Request) (*charging.Answer, error)
}

// Handler serves CCR. When the processor fails nothing is written and the
// gateway retransmits.
type Handler struct {
	processor Processor
	origin    Origin
	metrics   *metrics.Metrics
}

func NewHandler(p Processor, origin Origin, m *metrics.Metrics) *Handler {
	return &Handler{processor: p, origin: origin, metrics: m}
}

func (h *Handler) ServeDIAM(c diam.Conn, m *diam.Message) {
	logger.DiamLog.Tracef("Received CCR from %s", c.RemoteAddr())

	cca, ans := h.answer(context.Background(), m)
	if cca == nil {
		return
	}
	if _, err := cca.WriteTo(c); err != nil {
		logger.DiamLog.Errorf("Failed to send CCA to %s: %+v", c.RemoteAddr(), err)
		h.metrics.RecordDropped("write")
		return
	}
	h.metrics.RecordAnswer(ans)
}

// answer returns nil when the request must go unanswered.
func (h *Handler) answer(ctx context.Context, m *diam.Message) (*diam.Message, *charging.Answer) {
	req, err := DecodeCCR(m)
	if err != nil {
		logger.DiamLog.Errorf("Decode CCR failed: %+v", err)
		h.metrics.RecordDropped("decode")
		return nil, nil
	}

	ans, err := h.processor.Process(ctx, req)
	if err != nil {
		logger.DiamLog.WithField("session", req.SessionID).Errorf("No answer: %+v", err)
		h.metrics.RecordDropped("backend")
		return nil, nil
	}
	return EncodeCCA(m, ans, h.origin), ans
}
