package payroll

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Employee holds the figures a pay computation needs
type Employee struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	AnnualSalary float64 `yaml:"annual_salary" json:"annual_salary"`
	PayPeriods   int     `yaml:"pay_periods" json:"pay_periods"`
	TaxRate      float64 `yaml:"tax_rate" json:"tax_rate"`
	Deductions   float64 `yaml:"deductions" json:"deductions"`
}

// Directory looks employees up by id
type Directory interface {
	Get(ctx context.Context, id string) (Employee, error)
}

// MemoryDirectory is a concurrency-safe in-memory Directory
type MemoryDirectory struct {
	mu        sync.RWMutex
	employees map[string]Employee
}

// NewMemoryDirectory creates a directory seeded with employees
func NewMemoryDirectory(employees ...Employee) *MemoryDirectory {
	d := &MemoryDirectory{employees: make(map[string]Employee, len(employees))}
	for _, e := range employees {
		d.Put(e)
	}
	return d
}

// DefaultEmployees returns the demo roster
func DefaultEmployees() []Employee {
	return []Employee{
		{ID: "E123", Name: "Jane Doe", AnnualSalary: 39000, PayPeriods: 12, TaxRate: 0.2, Deductions: 100},
		{ID: "E456", Name: "John Roe", AnnualSalary: 52000, PayPeriods: 26, TaxRate: 0.25, Deductions: 50},
	}
}

// Put adds or replaces an employee
func (d *MemoryDirectory) Put(e Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
}

// Get implements Directory
func (d *MemoryDirectory) Get(_ context.Context, id string) (Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return e, nil
}

// IDs returns the known employee ids, sorted
func (d *MemoryDirectory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.employees))
	for id := range d.employees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// directoryFile is the YAML form of an employee roster
type directoryFile struct {
	Employees []Employee `yaml:"employees"`
}

// LoadFile replaces the directory content with the roster in path
func (d *MemoryDirectory) LoadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied roster path
	if err != nil {
		return fmt.Errorf("failed to read employee directory %s: %w", path, err)
	}

	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse employee directory %s: %w", path, err)
	}

	employees := make(map[string]Employee, len(file.Employees))
	for i, e := range file.Employees {
		if e.ID == "" {
			return fmt.Errorf("employee directory %s: entry %d has no id", path, i)
		}
		employees[e.ID] = e
	}

	d.mu.Lock()
	d.employees = employees
	d.mu.Unlock()
	return nil
}
