package model

import "sync"

// TestInfo describes a case or suite to listeners without exposing the tree.
type TestInfo struct {
	Name        string
	FullName    string
	Description string
	IsSuite     bool
	TestCount   int
	Categories  []string
}

// OutputKind tags captured text.
type OutputKind int

const (
	// OutputStdout is text written to T.Output or a command's stdout.
	OutputStdout OutputKind = iota
	// OutputStderr is text written to T.ErrorOutput or a command's stderr.
	OutputStderr
	// OutputLog is text written through T.Logf.
	OutputLog
)

func (k OutputKind) String() string {
	switch k {
	case OutputStdout:
		return "stdout"
	case OutputStderr:
		return "stderr"
	case OutputLog:
		return "log"
	default:
		return "unknown"
	}
}

// TestOutput is a chunk of text produced by a running case.
type TestOutput struct {
	Test string
	Kind OutputKind
	Text string
}

// Listener receives run events in order. Calls for a single run never overlap.
type Listener interface {
	// RunStarted is called once with the number of cases the run will start.
	RunStarted(name string, testCount int)
	// RunFinished is called once. err is non-nil when the run was cancelled or
	// aborted; result may then be partial or nil.
	RunFinished(result Result, err error)
	SuiteStarted(info TestInfo)
	SuiteFinished(result *SuiteResult)
	TestStarted(info TestInfo)
	TestFinished(result *CaseResult)
	TestOutput(output TestOutput)
	// UnhandledException reports an error raised outside any case.
	UnhandledException(err error)
}

// NullListener ignores every event. Embed it to implement only some events.
type NullListener struct{}

var _ Listener = NullListener{}

func (NullListener) RunStarted(string, int) {}
func (NullListener) RunFinished(Result, error) {}
func (NullListener) SuiteStarted(TestInfo) {}
func (NullListener) SuiteFinished(*SuiteResult) {}
func (NullListener) TestStarted(TestInfo) {}
func (NullListener) TestFinished(*CaseResult) {}
func (NullListener) TestOutput(TestOutput) {}
func (NullListener) UnhandledException(error) {}

func orNull(listener Listener) Listener {
	if listener == nil {
		return NullListener{}
	}

	return listener
}

// MultiListener forwards every event to each listener in order.
type MultiListener []Listener

var _ Listener = MultiListener(nil)

// Listeners combines listeners, dropping nils.
func Listeners(listeners ...Listener) Listener {
	out := make(MultiListener, 0, len(listeners))

	for _, l := range listeners {
		if l != nil {
			out = append(out, l)
		}
	}

	if len(out) == 1 {
		return out[0]
	}

	return out
}

func (m MultiListener) RunStarted(name string, testCount int) {
	for _, l := range m {
		l.RunStarted(name, testCount)
	}
}

func (m MultiListener) RunFinished(result Result, err error) {
	for _, l := range m {
		l.RunFinished(result, err)
	}
}

func (m MultiListener) SuiteStarted(info TestInfo) {
	for _, l := range m {
		l.SuiteStarted(info)
	}
}

func (m MultiListener) SuiteFinished(result *SuiteResult) {
	for _, l := range m {
		l.SuiteFinished(result)
	}
}

func (m MultiListener) TestStarted(info TestInfo) {
	for _, l := range m {
		l.TestStarted(info)
	}
}

func (m MultiListener) TestFinished(result *CaseResult) {
	for _, l := range m {
		l.TestFinished(result)
	}
}

func (m MultiListener) TestOutput(output TestOutput) {
	for _, l := range m {
		l.TestOutput(output)
	}
}

func (m MultiListener) UnhandledException(err error) {
	for _, l := range m {
		l.UnhandledException(err)
	}
}

// RecordingListener keeps every event it receives. Tests and the isolated
// runner's replay use it.
type RecordingListener struct {
	mu     sync.Mutex
	Events []Event
}

// EventKind names a listener callback.
type EventKind string

// Listener callbacks as event kinds.
const (
	EventRunStarted         EventKind = "RunStarted"
	EventRunFinished        EventKind = "RunFinished"
	EventSuiteStarted       EventKind = "SuiteStarted"
	EventSuiteFinished      EventKind = "SuiteFinished"
	EventTestStarted        EventKind = "TestStarted"
	EventTestFinished       EventKind = "TestFinished"
	EventTestOutput         EventKind = "TestOutput"
	EventUnhandledException EventKind = "UnhandledException"
)

// Event is one listener callback with its arguments.
type Event struct {
	Kind      EventKind
	Name      string
	TestCount int
	Info      TestInfo
	Result    Result
	Output    TestOutput
	Err       error
}

// Dispatch replays e on listener.
func (e Event) Dispatch(listener Listener) {
	switch e.Kind {
	case EventRunStarted:
		listener.RunStarted(e.Name, e.TestCount)
	case EventRunFinished:
		listener.RunFinished(e.Result, e.Err)
	case EventSuiteStarted:
		listener.SuiteStarted(e.Info)
	case EventSuiteFinished:
		r, _ := e.Result.(*SuiteResult)
		listener.SuiteFinished(r)
	case EventTestStarted:
		listener.TestStarted(e.Info)
	case EventTestFinished:
		r, _ := e.Result.(*CaseResult)
		listener.TestFinished(r)
	case EventTestOutput:
		listener.TestOutput(e.Output)
	case EventUnhandledException:
		listener.UnhandledException(e.Err)
	}
}

// EventSink turns every callback into an Event passed to a function.
type EventSink func(Event)

var _ Listener = EventSink(nil)

func (s EventSink) RunStarted(name string, testCount int) {
	s(Event{Kind: EventRunStarted, Name: name, TestCount: testCount})
}

func (s EventSink) RunFinished(result Result, err error) {
	s(Event{Kind: EventRunFinished, Result: result, Err: err})
}

func (s EventSink) SuiteStarted(info TestInfo) {
	s(Event{Kind: EventSuiteStarted, Name: info.FullName, Info: info})
}

func (s EventSink) SuiteFinished(result *SuiteResult) {
	s(Event{Kind: EventSuiteFinished, Name: result.FullName, Result: result})
}

func (s EventSink) TestStarted(info TestInfo) {
	s(Event{Kind: EventTestStarted, Name: info.FullName, Info: info})
}

func (s EventSink) TestFinished(result *CaseResult) {
	s(Event{Kind: EventTestFinished, Name: result.FullName, Result: result})
}

func (s EventSink) TestOutput(output TestOutput) {
	s(Event{Kind: EventTestOutput, Name: output.Test, Output: output})
}

func (s EventSink) UnhandledException(err error) {
	s(Event{Kind: EventUnhandledException, Err: err})
}

// Listener returns a listener that appends to r.Events.
func (r *RecordingListener) Listener() Listener {
	return EventSink(func(e Event) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.Events = append(r.Events, e)
	})
}

// Trace returns "Kind:Name" for each recorded event, in order.
func (r *RecordingListener) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		if e.Name == "" {
			out = append(out, string(e.Kind))
			continue
		}

		out = append(out, string(e.Kind)+":"+e.Name)
	}

	return out
}

// Snapshot returns a copy of the recorded events.
func (r *RecordingListener) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.Events...)
}
