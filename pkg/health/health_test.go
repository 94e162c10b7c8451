package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func check(name string, err error) CheckFunc {
	return NewCheckFunc(name, func(context.Context) error { return err })
}

func TestCheckerRegistry_Check(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name     string
		required []CheckFunc
		optional []CheckFunc
		want     Status
	}{
		{"empty", nil, nil, StatusHealthy},
		{"all healthy", []CheckFunc{check("storage", nil)}, []CheckFunc{check("kafka", nil)}, StatusHealthy},
		{"optional failing", []CheckFunc{check("storage", nil)}, []CheckFunc{check("kafka", down)}, StatusDegraded},
		{"required failing", []CheckFunc{check("storage", down)}, []CheckFunc{check("kafka", down)}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.required {
				r.Register(c)
			}
			for _, c := range tt.optional {
				r.RegisterOptional(c)
			}

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.required)+len(tt.optional))
		})
	}
}

func TestCheckerRegistry_ReportsMessage(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(check("storage", errors.New("connection refused")))

	h := r.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Checks["storage"].Status)
	assert.Equal(t, "connection refused", h.Checks["storage"].Message)
}

func TestKafkaChecker_NoBrokers(t *testing.T) {
	err := NewKafkaChecker(nil).Check(context.Background())
	assert.EqualError(t, err, "kafka unreachable: no brokers configured")
}
