package api

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/go-faster/errors"
)

// JSONSender writes one JSON object per line for every flow it is given
type JSONSender struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONSender(w io.Writer) *JSONSender {
	return &JSONSender{enc: json.NewEncoder(w)}
}

func (s *JSONSender) SendFlows(ctx context.Context, flows []*Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, flow := range flows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(flow); err != nil {
			return errors.Wrapf(err, "encode flow %s", flow.Uuid)
		}
	}
	return nil
}
