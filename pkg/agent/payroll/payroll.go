// Package payroll is the example concrete agent: it computes net pay and answers payroll questions.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Ingenimax/llmops-agent/pkg/agent"
	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
	"github.com/Ingenimax/llmops-agent/pkg/logging"
)

const (
	// AgentName is the name the payroll agent registers under
	AgentName = "payroll"

	// Operation labels payroll invocations in observability events
	Operation = "payroll-chat"

	// DefaultSystemPromptID is the prompt used by the ask action
	DefaultSystemPromptID = "payroll_system"

	ActionComputePay = "compute_pay"
	ActionAsk        = "ask"
)

var (
	// ErrEmployeeNotFound is returned when the directory has no such employee
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDivisionByZero is returned when an employee has no pay periods
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnsupportedAction is returned for actions other than compute_pay and ask
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrAssistantUnavailable is returned by ask when no LLM is configured
	ErrAssistantUnavailable = errors.New("payroll assistant unavailable")
)

// Agent implements interfaces.Agent for payroll requests
type Agent struct {
	agent.Base
	directory     Directory
	directoryFile string
	assistant     interfaces.Agent
	logger        logging.Logger
}

// Option represents an option for configuring the payroll agent
type Option func(*Agent)

// WithDirectory sets the employee directory
func WithDirectory(directory Directory) Option {
	return func(a *Agent) {
		a.directory = directory
	}
}

// WithDirectoryFile loads the employee roster from a YAML file during Init
func WithDirectoryFile(path string) Option {
	return func(a *Agent) {
		a.directoryFile = path
	}
}

// WithAssistant sets the agent that answers the ask action, usually an *agent.LLMAgent
func WithAssistant(assistant interfaces.Agent) Option {
	return func(a *Agent) {
		a.assistant = assistant
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates a payroll agent. Without a directory it serves DefaultEmployees.
func New(options ...Option) *Agent {
	a := &Agent{
		Base:   agent.NewBase(AgentName),
		logger: logging.NewNoOpLogger(),
	}
	for _, option := range options {
		option(a)
	}
	if a.directory == nil {
		a.directory = NewMemoryDirectory(DefaultEmployees()...)
	}
	return a
}

// Init loads the directory file when one is configured
func (a *Agent) Init(ctx context.Context) error {
	if a.directoryFile == "" {
		return nil
	}
	dir, ok := a.directory.(*MemoryDirectory)
	if !ok {
		dir = NewMemoryDirectory()
		a.directory = dir
	}
	if err := dir.LoadFile(a.directoryFile); err != nil {
		return err
	}
	a.logger.Info(ctx, "Loaded employee directory", map[string]interface{}{
		"path":      a.directoryFile,
		"employees": len(dir.IDs()),
	})
	return nil
}

// Run dispatches on the request's action field. An empty action means compute_pay.
func (a *Agent) Run(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	action, _ := req.String("action")
	if action == "" {
		action = ActionComputePay
	}

	switch action {
	case ActionComputePay:
		return a.computePay(ctx, req)
	case ActionAsk:
		return a.ask(ctx, req)
	default:
		return nil, interfaces.NewAgentExecutionError(a.Name(), action, ErrUnsupportedAction)
	}
}

func (a *Agent) computePay(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	employeeID, ok := req.String("employee_id")
	if !ok {
		return nil, interfaces.NewAgentExecutionError(a.Name(), "employee_id is required", nil)
	}

	employee, err := a.directory.Get(ctx, employeeID)
	if err != nil {
		return nil, interfaces.NewAgentExecutionError(a.Name(), ActionComputePay+" failed", err)
	}

	net, err := NetPay(employee)
	if err != nil {
		return nil, interfaces.NewAgentExecutionError(a.Name(), ActionComputePay+" failed", err)
	}

	a.logger.Debug(ctx, "Computed net pay", map[string]interface{}{
		"employee_id": employeeID,
		"net_pay":     net,
	})

	return interfaces.Response{
		"employee_id": employeeID,
		"net_pay":     net,
	}, nil
}

func (a *Agent) ask(ctx context.Context, req interfaces.Request) (interfaces.Response, error) {
	if a.assistant == nil {
		return nil, interfaces.NewAgentExecutionError(a.Name(), ActionAsk+" failed", ErrAssistantUnavailable)
	}

	enriched := make(interfaces.Request, len(req)+1)
	for k, v := range req {
		enriched[k] = v
	}
	if employeeID, ok := req.String("employee_id"); ok {
		if employee, err := a.directory.Get(ctx, employeeID); err == nil {
			enriched["employee_name"] = employee.Name
		}
	}

	return a.assistant.Run(ctx, enriched)
}

// NetPay returns the per-period pay after tax and deductions, rounded to cents
func NetPay(e Employee) (float64, error) {
	if e.PayPeriods == 0 {
		return 0, ErrDivisionByZero
	}
	if e.PayPeriods < 0 {
		return 0, fmt.Errorf("invalid pay periods %d", e.PayPeriods)
	}
	gross := e.AnnualSalary / float64(e.PayPeriods)
	net := gross - gross*e.TaxRate - e.Deductions
	return math.Round(net*100) / 100, nil
}
