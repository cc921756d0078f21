// Package supervisor implements the process supervisor.
// It registers service/model plugin descriptors, resolves the active set
// from a scenario, forks one subprocess per active plugin, exchanges
// discovery addresses over a pipe, and joins everything on shutdown.
// Grounded on the process/lifecycle split in tab-fuku's runner package
// (internal/app/runner/process.go, lifecycle.go): a small Process handle
// wrapping *exec.Cmd plus a done channel, and a separate object owning
// signal/kill semantics.
package supervisor

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
)

// Kind distinguishes the two plugin categories the registry tracks.
type Kind int

const (
	KindService Kind = iota
	KindModel
)

// Plugin is a registered service or model type.
type Plugin struct {
	Name string
	Kind Kind

	// AutoUse, only meaningful for services, means "always start this
	// service even if the scenario doesn't name it".
	AutoUse bool
	// Daemon means "fire-and-forget": not joined on shutdown, expected to
	// exit only when its socket closes.
	Daemon bool

	// Command builds the *exec.Cmd for one instance of this plugin. args
	// carries whatever startup arguments the plugin needs serialized in
	// (scenario config path, discovered service addresses, model name)
	// so every subprocess is spawned with its startup arguments serialized
	// in explicitly, never inferred from global state.
	Command func(args StartArgs) *exec.Cmd
}

// StartArgs is what a Plugin's Command func needs to build its subprocess
// invocation.
type StartArgs struct {
	ScenarioPath string
	ModelName    string                 // set only for KindModel instances
	Services     map[string]string      // service name -> "tcp://127.0.0.1:<port>"
	Extra        map[string]interface{} // scenario-declared model config, if any
}

// Registry holds every known plugin by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.plugins[p.Name]; dup {
		return fmt.Errorf("supervisor: plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	return nil
}

func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// ActiveServices resolves the service set: every auto-use service, unioned
// with whatever the scenario explicitly names, failing if a named service
// isn't registered.
func (r *Registry) ActiveServices(named []string) ([]Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []Plugin
	for _, p := range r.plugins {
		if p.Kind == KindService && p.AutoUse {
			out = append(out, p)
			seen[p.Name] = true
		}
	}
	for _, name := range named {
		if seen[name] {
			continue
		}
		p, ok := r.plugins[name]
		if !ok || p.Kind != KindService {
			return nil, fmt.Errorf("supervisor: unknown service %q", name)
		}
		out = append(out, p)
		seen[name] = true
	}
	return out, nil
}

// ActiveModels resolves the model set in declared order.
func (r *Registry) ActiveModels(named []string) ([]Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(named))
	for _, name := range named {
		p, ok := r.plugins[name]
		if !ok || p.Kind != KindModel {
			return nil, fmt.Errorf("supervisor: unknown model %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// startupTimeout bounds how long a service gets to announce its bound
// address before the supervisor gives up.
const startupTimeout = 5 * time.Second

// Process wraps one running subprocess: a thin handle over *exec.Cmd plus
// a done channel, matching tab-fuku's runner.Process shape.
type Process struct {
	Name    string
	Daemon  bool
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) ExitCode() int {
	if p.cmd.ProcessState == nil {
		return 0
	}
	return p.cmd.ProcessState.ExitCode()
}

// WaitErr returns the error exec.Cmd.Wait returned, if any, once Done has
// fired.
func (p *Process) WaitErr() error { return p.waitErr }

// Supervisor owns every spawned subprocess and the address map discovered
// from services.
type Supervisor struct {
	registry *Registry

	// StartupTimeout overrides startupTimeout; tests shrink it so a
	// deliberately-silent subprocess doesn't stall the suite.
	StartupTimeout time.Duration

	mu        sync.Mutex
	processes []*Process
	addresses map[string]string
}

func New(registry *Registry) *Supervisor {
	return &Supervisor{registry: registry, addresses: make(map[string]string), StartupTimeout: startupTimeout}
}

// StartService forks plugin p as a service subprocess, reads its announced
// address off a pipe within startupTimeout, and records it.
func (s *Supervisor) StartService(p Plugin, scenarioPath string) error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("supervisor: pipe for %q: %w", p.Name, err)
	}
	defer r.Close()

	cmd := p.Command(StartArgs{ScenarioPath: scenarioPath})
	cmd.ExtraFiles = append(cmd.ExtraFiles, w)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		w.Close()
		return fmt.Errorf("supervisor: start %q: %w", p.Name, err)
	}
	w.Close() // parent's copy; the child still holds its own

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		if scanner.Scan() {
			addrCh <- strings.TrimSpace(scanner.Text())
			return
		}
		errCh <- fmt.Errorf("supervisor: %q closed its announce pipe without writing an address", p.Name)
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		_ = cmd.Process.Kill()
		return err
	case <-time.After(s.StartupTimeout):
		_ = cmd.Process.Kill()
		return fmt.Errorf("supervisor: %q did not announce an address within %s", p.Name, s.StartupTimeout)
	}

	s.track(p.Name, p.Daemon, cmd)
	s.mu.Lock()
	s.addresses[p.Name] = addr
	s.mu.Unlock()
	nlog.Infof("supervisor: %q bound at %s (pid %d)", p.Name, addr, cmd.Process.Pid)
	return nil
}

// StartModel forks plugin p as a model subprocess with the discovered
// service addresses injected.
func (s *Supervisor) StartModel(p Plugin, scenarioPath string, extra map[string]interface{}) error {
	s.mu.Lock()
	services := make(map[string]string, len(s.addresses))
	for k, v := range s.addresses {
		services[k] = v
	}
	s.mu.Unlock()

	cmd := p.Command(StartArgs{ScenarioPath: scenarioPath, ModelName: p.Name, Services: services, Extra: extra})
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start model %q: %w", p.Name, err)
	}
	s.track(p.Name, false, cmd)
	nlog.Infof("supervisor: model %q started (pid %d)", p.Name, cmd.Process.Pid)
	return nil
}

func (s *Supervisor) track(name string, daemon bool, cmd *exec.Cmd) *Process {
	proc := &Process{Name: name, Daemon: daemon, cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.waitErr = cmd.Wait()
		close(proc.done)
	}()
	s.mu.Lock()
	s.processes = append(s.processes, proc)
	s.mu.Unlock()
	return proc
}

// Addresses returns a snapshot of every discovered service address.
func (s *Supervisor) Addresses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.addresses))
	for k, v := range s.addresses {
		out[k] = v
	}
	return out
}

// Shutdown joins every non-daemon process and returns the maximum exit
// code seen. Daemon processes are left to exit on their own once their
// listening socket closes.
func (s *Supervisor) Shutdown() int {
	s.mu.Lock()
	procs := append([]*Process(nil), s.processes...)
	s.mu.Unlock()

	maxExit := 0
	for _, p := range procs {
		if p.Daemon {
			continue
		}
		<-p.Done()
		if code := p.ExitCode(); code > maxExit {
			maxExit = code
		}
	}
	return maxExit
}
