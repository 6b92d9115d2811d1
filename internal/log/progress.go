package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ProgressIndicator renders a single-line progress bar for a batch of items.
// Increment is safe for concurrent use.
type ProgressIndicator struct {
	mu        sync.Mutex
	out       io.Writer
	name      string
	total     int
	current   int
	startTime time.Time
	interval  time.Duration
	lastDraw  time.Time
	bar       bool
	nextLog   int
}

// ProgressConfig configures progress indicator behavior
type ProgressConfig struct {
	Out      io.Writer
	ShowBar  bool          // false logs milestones instead of drawing
	Interval time.Duration // minimum time between redraws
}

// NewProgressIndicator creates a progress indicator for total items
func NewProgressIndicator(name string, total int, cfg ProgressConfig) *ProgressIndicator {
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}
	return &ProgressIndicator{
		out:       cfg.Out,
		name:      name,
		total:     total,
		startTime: time.Now(),
		interval:  cfg.Interval,
		bar:       cfg.ShowBar,
		nextLog:   25,
	}
}

// NewBatchProgress draws a bar when stderr is a terminal and logs quarter
// milestones otherwise
func NewBatchProgress(name string, total int) *ProgressIndicator {
	return NewProgressIndicator(name, total, ProgressConfig{
		Out:      os.Stderr,
		ShowBar:  term.IsTerminal(int(os.Stderr.Fd())),
		Interval: 100 * time.Millisecond,
	})
}

// Increment advances progress by one step
func (pi *ProgressIndicator) Increment() {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.update(pi.current + 1)
}

// Update sets the current progress value
func (pi *ProgressIndicator) Update(current int) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.update(current)
}

// Current returns the number of completed steps
func (pi *ProgressIndicator) Current() int {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.current
}

func (pi *ProgressIndicator) update(current int) {
	pi.current = current

	if !pi.bar {
		pi.logMilestone()
		return
	}
	now := time.Now()
	if pi.current < pi.total && now.Sub(pi.lastDraw) < pi.interval {
		return
	}
	pi.lastDraw = now
	fmt.Fprint(pi.out, pi.render())
}

func (pi *ProgressIndicator) logMilestone() {
	if pi.total <= 0 {
		return
	}
	pct := pi.current * 100 / pi.total
	if pct < pi.nextLog {
		return
	}
	for pi.nextLog <= pct {
		pi.nextLog += 25
	}
	log.Info().
		Str("batch", pi.name).
		Int("done", pi.current).
		Int("total", pi.total).
		Dur("elapsed", time.Since(pi.startTime).Round(time.Millisecond)).
		Msgf("%s %d%%", pi.name, pct)
}

// render builds the bar line; caller holds mu
func (pi *ProgressIndicator) render() string {
	var output strings.Builder
	output.WriteString("\r\033[K")
	output.WriteString(pi.name)

	if pi.total > 0 {
		percentage := float64(pi.current) / float64(pi.total) * 100
		barWidth := 20
		filled := int(float64(barWidth) * float64(pi.current) / float64(pi.total))

		output.WriteString(" [")
		for i := 0; i < barWidth; i++ {
			if i < filled {
				output.WriteString("█")
			} else {
				output.WriteString("░")
			}
		}
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", pi.current, pi.total, percentage))

		if pi.current > 0 && pi.current < pi.total {
			elapsed := time.Since(pi.startTime)
			rate := float64(pi.current) / elapsed.Seconds()
			eta := time.Duration(float64(pi.total-pi.current)/rate) * time.Second
			output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
		}
	}
	return output.String()
}

// Finish completes the progress indicator
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := time.Since(pi.startTime).Round(time.Millisecond)
	if pi.bar {
		fmt.Fprintf(pi.out, "\r\033[K%s completed (%d items, %v)\n", pi.name, pi.total, duration)
		return
	}
	log.Info().Str("batch", pi.name).Int("total", pi.total).Dur("duration", duration).Msg("Batch completed")
}

// StepLogger logs named pipeline steps with their durations
type StepLogger struct {
	name        string
	steps       []string
	currentStep int
	stepStart   time.Time
	startTime   time.Time
	stepTimes   []time.Duration
}

// NewStepLogger creates a step logger for a pipeline
func NewStepLogger(name string, steps []string) *StepLogger {
	return &StepLogger{
		name:        name,
		steps:       steps,
		currentStep: -1,
		startTime:   time.Now(),
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep closes the running step and begins stepName
func (sl *StepLogger) StartStep(stepName string) {
	stepIndex := -1
	for i, step := range sl.steps {
		if step == stepName {
			stepIndex = i
			break
		}
	}
	if stepIndex == -1 {
		log.Warn().Str("step", stepName).Msg("Unknown pipeline step")
		return
	}

	sl.CompleteStep()
	sl.currentStep = stepIndex
	sl.stepStart = time.Now()

	log.Debug().
		Str("pipeline", sl.name).
		Str("step", stepName).
		Int("step_number", stepIndex+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting pipeline step")
}

// CompleteStep records the duration of the running step
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 || sl.stepTimes[sl.currentStep] > 0 {
		return
	}
	took := time.Since(sl.stepStart)
	if took <= 0 {
		took = time.Nanosecond
	}
	sl.stepTimes[sl.currentStep] = took
	log.Debug().
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", took).
		Msg("Pipeline step completed")
}

// StepTimes returns recorded durations keyed by step name
func (sl *StepLogger) StepTimes() map[string]time.Duration {
	out := make(map[string]time.Duration, len(sl.steps))
	for i, step := range sl.steps {
		if sl.stepTimes[i] > 0 {
			out[step] = sl.stepTimes[i]
		}
	}
	return out
}

// Finish completes the running step and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	total := time.Since(sl.startTime)

	ev := log.Info().Str("pipeline", sl.name).Dur("total_duration", total)
	for i, step := range sl.steps {
		if sl.stepTimes[i] > 0 {
			ev = ev.Dur(step, sl.stepTimes[i])
		}
	}
	ev.Msg("Pipeline completed")
}

// Fail logs the step that was running when the pipeline failed
func (sl *StepLogger) Fail(reason error) {
	step := "unknown"
	if sl.currentStep >= 0 {
		step = sl.steps[sl.currentStep]
	}
	log.Error().
		Err(reason).
		Str("pipeline", sl.name).
		Str("failed_step", step).
		Int("total_steps", len(sl.steps)).
		Msg("Pipeline failed")
}
