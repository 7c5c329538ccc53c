package hud

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/hud/pkg/core"
)

const instrumentationName = "github.com/OCAP2/hud/pkg/hud"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type rendererMetrics struct {
	attrs    metric.MeasurementOption
	ticks    metric.Int64Counter
	skipped  metric.Int64Counter
	swept    metric.Int64Counter
	duration metric.Float64Histogram
	views    metric.Int64ObservableGauge
	reg      metric.Registration
}

func newRendererMetrics(m metric.Meter, r *Renderer) (*rendererMetrics, error) {
	rm := &rendererMetrics{
		attrs: metric.WithAttributes(attribute.String("renderer", r.name)),
	}

	var err error

	rm.ticks, err = m.Int64Counter(
		"hud.renderer.ticks",
		metric.WithDescription("Layout passes completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	rm.skipped, err = m.Int64Counter(
		"hud.renderer.ticks.skipped",
		metric.WithDescription("Layout passes skipped for lack of a camera"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	rm.swept, err = m.Int64Counter(
		"hud.renderer.views.swept",
		metric.WithDescription("Views reclaimed because their entity disappeared"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating swept counter: %w", err)
	}

	rm.duration, err = m.Float64Histogram(
		"hud.renderer.tick.duration",
		metric.WithDescription("Layout pass duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	rm.views, err = m.Int64ObservableGauge(
		"hud.renderer.views",
		metric.WithDescription("Views by state after the last pass"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating views gauge: %w", err)
	}

	rm.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			st := r.Stats()
			observe := func(state core.ViewState, n int) {
				o.ObserveInt64(rm.views, int64(n), metric.WithAttributes(
					attribute.String("renderer", r.name),
					attribute.String("state", state.String()),
				))
			}
			observe(core.StateOnScreen, st.OnScreen)
			observe(core.StateOffScreen, st.OffScreen)
			observe(core.StateHidden, st.Hidden)
			return nil
		},
		rm.views,
	)
	if err != nil {
		return nil, fmt.Errorf("registering views callback: %w", err)
	}

	return rm, nil
}

func (rm *rendererMetrics) record(ctx context.Context, st TickStats) {
	if st.Skipped {
		rm.skipped.Add(ctx, 1, rm.attrs)
		return
	}
	rm.ticks.Add(ctx, 1, rm.attrs)
	if st.Swept > 0 {
		rm.swept.Add(ctx, int64(st.Swept), rm.attrs)
	}
	rm.duration.Record(ctx, float64(st.Duration.Microseconds())/1000, rm.attrs)
}

func (rm *rendererMetrics) close() {
	if rm.reg != nil {
		_ = rm.reg.Unregister()
	}
}
