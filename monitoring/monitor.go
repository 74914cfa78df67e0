// Package monitoring serves the state of a running scenario over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/simcheck/idgen"
	"github.com/sarchlab/simcheck/instrumentation/hooking"
	"github.com/sarchlab/simcheck/monitoring/web"
	"github.com/sarchlab/simcheck/timing"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      timing.Engine
	steps       *stepTracker
	portNumber  int
	openBrowser bool
	logger      *log.Logger

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		steps:  newStepTracker(nil),
		logger: log.New(os.Stderr, "", 0),
	}
}

// WithPortNumber sets the port number of the monitor. Zero picks a free
// port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Printf(
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes StartServer open the monitoring page.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets where the monitor reports its address.
func (m *Monitor) WithLogger(logger *log.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e

	m.steps.lock.Lock()
	m.steps.timeTeller = e
	m.steps.lock.Unlock()
}

// RegisterRunner follows the steps of a scenario runner. totalSteps sizes
// the progress bar of the scenario.
func (m *Monitor) RegisterRunner(runner hooking.Hookable, totalSteps uint64) {
	bar := m.CreateProgressBar("steps", totalSteps)

	m.steps.lock.Lock()
	m.steps.progress = bar
	m.steps.lock.Unlock()

	runner.AcceptHook(m.steps)
}

// Steps returns the steps seen so far.
func (m *Monitor) Steps() []StepStatus {
	return m.steps.snapshot()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        idgen.Generate("progress"),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitoring API and pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.continueEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/steps", m.listSteps)
	r.HandleFunc("/api/step/{name}", m.stepDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: listen: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Printf("Monitoring simulation with %s", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Printf("monitoring server stopped: %v", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Printf("cannot open browser: %v", err)
		}
	}

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) engineOr503(w http.ResponseWriter) timing.Engine {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
	}

	return m.engine
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%.10f}", engine.CurrentTime())
}

type statusRsp struct {
	Now           float64 `json:"now"`
	Engine        string  `json:"engine"`
	QueueSize     int     `json:"queue_size"`
	Notifications uint64  `json:"notifications"`
	Verdict       string  `json:"verdict,omitempty"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	engine := m.engineOr503(w)
	if engine == nil {
		return
	}

	verdict, notifications := m.steps.summary()

	writeJSON(w, statusRsp{
		Now:           float64(engine.CurrentTime()),
		Engine:        engine.Status().String(),
		QueueSize:     engine.QueueSize(),
		Notifications: notifications,
		Verdict:       verdict,
	})
}

func (m *Monitor) listSteps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.steps.snapshot())
}

// stepDetails serializes a step. The optional field query walks into the
// step, for example field=check.notificationType.
func (m *Monitor) stepDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	step, ok := m.steps.find(name)
	if !ok {
		http.Error(w, "Step not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(step)
	serializer.SetMaxDepth(1)

	if field := r.URL.Query().Get("field"); field != "" {
		err := serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var buf bytes.Buffer
	if err := serializer.Serialize(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

// collectProfile samples the CPU for the number of seconds in the seconds
// query, one by default.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		seconds, err := strconv.ParseFloat(s, 64)
		if err != nil || seconds <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(seconds * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
