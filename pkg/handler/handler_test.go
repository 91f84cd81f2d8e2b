package handler

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/bus"
	"github.com/rhuss/modelserve/pkg/cache"
	"github.com/rhuss/modelserve/pkg/cache/memory"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/estimator/mock"
	"github.com/rhuss/modelserve/pkg/throttle"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var (
	sample  = api.Sample{api.String("red"), api.Float(1.5)}
	dataset = api.Dataset{
		{api.String("red"), api.Float(1.5)},
		{api.String("blue"), api.Float(2.5)},
	}
)

func newBus(t *testing.T, est estimator.Estimator, opts Options) *bus.Bus {
	t.Helper()
	b, err := NewBus(est, opts)
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return b
}

func TestRegistryCoversEveryKind(t *testing.T) {
	reg := Registry(mock.FirstFeature(), Options{})
	for _, k := range api.CommandKinds() {
		if reg[k] == nil {
			t.Errorf("no handler for %s", k)
		}
	}
}

func TestHandlersAnswerEveryKind(t *testing.T) {
	b := newBus(t, mock.FirstFeature(), Options{Pool: throttle.NewPool(2)})

	tests := []struct {
		cmd  api.Command
		want map[string]any
	}{
		{
			cmd:  must(api.NewPredictSample(sample)),
			want: map[string]any{"prediction": api.String("red")},
		},
		{
			cmd:  must(api.NewPredictSamples(dataset)),
			want: map[string]any{"predictions": []api.Value{api.String("red"), api.String("blue")}},
		},
		{
			cmd:  must(api.NewProbaSample(sample)),
			want: map[string]any{"probabilities": map[string]float64{`"red"`: 1}},
		},
		{
			cmd: must(api.NewProbaSamples(dataset)),
			want: map[string]any{"probabilities": []map[string]float64{
				{`"red"`: 1},
				{`"blue"`: 1},
			}},
		},
		{
			cmd:  must(api.NewRankSample(sample)),
			want: map[string]any{"score": 2.0},
		},
		{
			cmd:  must(api.NewScore(dataset)),
			want: map[string]any{"scores": []float64{2, 2}},
		},
		{
			cmd: api.NewQueryModel(),
			want: map[string]any{"model": map[string]any{
				"type":          "classifier",
				"probabilistic": true,
				"ranking":       true,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd.Kind()), func(t *testing.T) {
			resp, err := b.Dispatch(context.Background(), tt.cmd)
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if resp.Kind() != tt.cmd.Kind() {
				t.Errorf("response kind = %s, want %s", resp.Kind(), tt.cmd.Kind())
			}
			if got := resp.AsMap(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AsMap = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCapabilityMismatch(t *testing.T) {
	b := newBus(t, mock.Constant("cat"), Options{})

	for _, cmd := range []api.Command{
		must(api.NewProbaSample(sample)),
		must(api.NewProbaSamples(dataset)),
		must(api.NewRankSample(sample)),
		must(api.NewScore(dataset)),
	} {
		t.Run(string(cmd.Kind()), func(t *testing.T) {
			_, err := b.Dispatch(context.Background(), cmd)
			var cm *api.CapabilityMismatchError
			if !errors.As(err, &cm) {
				t.Fatalf("error = %v, want CapabilityMismatchError", err)
			}
			if cm.Capability != cmd.Kind().Capability() {
				t.Errorf("Capability = %q, want %q", cm.Capability, cmd.Kind().Capability())
			}
			if api.StatusCode(err) != 500 {
				t.Errorf("StatusCode = %d, want 500", api.StatusCode(err))
			}
		})
	}
}

func TestPredictionOnlyModelReportsCapabilities(t *testing.T) {
	b := newBus(t, mock.Constant("cat"), Options{})
	resp, err := b.Dispatch(context.Background(), api.NewQueryModel())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	q := resp.(*api.QueryModelResponse)
	if q.Probabilistic() || q.Ranking() {
		t.Errorf("QueryModel = %+v, want no optional capabilities", q)
	}
}

func TestCardinalityMismatch(t *testing.T) {
	est := &mock.Estimator{
		PredictFn: func(context.Context, api.Dataset) ([]api.Value, error) {
			return []api.Value{api.Int(1)}, nil
		},
	}
	b := newBus(t, est, Options{})

	_, err := b.Dispatch(context.Background(), must(api.NewPredictSamples(dataset)))
	if api.TypeOf(err) != api.ErrorTypeEstimator {
		t.Errorf("error = %v, want an estimator error", err)
	}
}

func TestInvalidPrediction(t *testing.T) {
	est := &mock.Estimator{
		PredictFn: func(context.Context, api.Dataset) ([]api.Value, error) {
			return []api.Value{{}}, nil
		},
	}
	_, err := newBus(t, est, Options{}).Dispatch(context.Background(), must(api.NewPredictSample(sample)))
	if api.TypeOf(err) != api.ErrorTypeEstimator {
		t.Errorf("error = %v, want an estimator error", err)
	}
}

func TestEstimatorErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	est := &mock.Estimator{
		ScoreFn: func(context.Context, api.Dataset) ([]float64, error) { return nil, boom },
	}
	_, err := newBus(t, est, Options{}).Dispatch(context.Background(), must(api.NewScore(dataset)))
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want it to wrap %v", err, boom)
	}
}

func TestWrongCommandVariant(t *testing.T) {
	h := NewPredictSampleHandler(mock.FirstFeature(), nil)
	if _, err := h.Handle(context.Background(), api.NewQueryModel()); api.TypeOf(err) != api.ErrorTypeServerError {
		t.Errorf("error = %v, want a server error", err)
	}
}

func TestCachedInference(t *testing.T) {
	est := mock.FirstFeature()
	c := cache.New(memory.New(0), time.Minute)
	b := newBus(t, est, Options{Cache: c})

	for i := 0; i < 3; i++ {
		if _, err := b.Dispatch(context.Background(), must(api.NewPredictSample(sample))); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if est.Calls() != 1 {
		t.Errorf("estimator called %d times, want 1", est.Calls())
	}

	// query_model is not cached and does not reach the estimator.
	b.Dispatch(context.Background(), api.NewQueryModel())
	if est.Calls() != 1 {
		t.Errorf("estimator called %d times after query_model", est.Calls())
	}
}

func TestCachedSkipsDisabledCache(t *testing.T) {
	h := NewQueryModelHandler(mock.FirstFeature())
	if got := Cached(h, nil); got != bus.Handler(h) {
		t.Error("Cached wrapped a handler with a nil cache")
	}
	if got := Cached(h, cache.New(memory.New(0), 0)); got != bus.Handler(h) {
		t.Error("Cached wrapped a handler with a zero-ttl cache")
	}
}

func TestServerStatus(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	h := NewServerStatusHandler(start, map[string]string{"modelserve": "v1.2.3"})
	h.now = func() time.Time { return start.Add(90 * time.Second) }

	resp, err := h.Handle(context.Background(), api.NewServerStatus())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	s := resp.(*api.ServerStatusResponse)
	if s.Start() != start.Unix() || s.Uptime() != 90 {
		t.Errorf("start = %d, uptime = %d", s.Start(), s.Uptime())
	}
	if s.PID() <= 0 {
		t.Errorf("PID = %d", s.PID())
	}
	v := s.Versions()
	if v["modelserve"] != "v1.2.3" || v["go"] == "" {
		t.Errorf("Versions = %v", v)
	}
}

func TestCancelledWhileQueued(t *testing.T) {
	pool := throttle.NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	est := &mock.Estimator{
		PredictFn: func(ctx context.Context, s api.Dataset) ([]api.Value, error) {
			select {
			case <-started:
			default:
				close(started)
			}
			<-release
			return []api.Value{s[0][0]}, nil
		},
	}
	b := newBus(t, est, Options{Pool: pool})

	go b.Dispatch(context.Background(), must(api.NewPredictSample(sample)))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Dispatch(ctx, must(api.NewPredictSample(sample)))
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}
