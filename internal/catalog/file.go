// Package catalog provides plan-day sources for starting sessions.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/meltforce/trainlog/internal/apperr"
	"github.com/meltforce/trainlog/internal/models"
)

// planFile is the on-disk layout of a plan file.
type planFile struct {
	PlanDays []planDayYAML `yaml:"plan_days"`
}

type planDayYAML struct {
	ID        string         `yaml:"id"`
	UserID    string         `yaml:"user_id"`
	SplitName string         `yaml:"split_name"`
	Items     []planItemYAML `yaml:"items"`
}

type planItemYAML struct {
	ID           string   `yaml:"id"`
	ExerciseID   string   `yaml:"exercise_id"`
	ExerciseName string   `yaml:"exercise_name"`
	Sets         int      `yaml:"sets"`
	Reps         string   `yaml:"reps"`
	RestSeconds  int      `yaml:"rest_seconds"`
	WeightKg     *float64 `yaml:"weight_kg"`
}

// FileCatalog serves plan days from a YAML file.
type FileCatalog struct {
	path string

	mu   sync.RWMutex
	days map[string]models.PlanDay
}

// LoadFile reads and validates the plan file at path.
func LoadFile(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the plan file. On error the previous contents stay in use.
func (c *FileCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading plan file: %w", err)
	}
	days, err := parsePlanFile(data)
	if err != nil {
		return fmt.Errorf("parsing plan file %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.days = days
	c.mu.Unlock()
	return nil
}

func parsePlanFile(data []byte) (map[string]models.PlanDay, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	days := make(map[string]models.PlanDay, len(f.PlanDays))
	for i, d := range f.PlanDays {
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("plan day %d: id is required", i)
		}
		if _, dup := days[d.ID]; dup {
			return nil, fmt.Errorf("plan day %q: duplicate id", d.ID)
		}
		if strings.TrimSpace(d.UserID) == "" {
			return nil, fmt.Errorf("plan day %q: user_id is required", d.ID)
		}

		day := models.PlanDay{ID: d.ID, UserID: d.UserID, SplitName: d.SplitName}
		for j, it := range d.Items {
			if it.ExerciseID == "" {
				return nil, fmt.Errorf("plan day %q item %d: exercise_id is required", d.ID, j)
			}
			if it.Sets < 1 {
				return nil, fmt.Errorf("plan day %q item %d: sets must be at least 1", d.ID, j)
			}
			if it.RestSeconds < 0 {
				return nil, fmt.Errorf("plan day %q item %d: rest_seconds must not be negative", d.ID, j)
			}
			name := it.ExerciseName
			if name == "" {
				name = it.ExerciseID
			}
			day.Items = append(day.Items, models.PlanItem{
				ID:           it.ID,
				ExerciseID:   it.ExerciseID,
				ExerciseName: name,
				ItemIndex:    j,
				Prescription: models.Prescription{
					SetCount:    it.Sets,
					Reps:        models.ParseRepsTarget(it.Reps),
					RestSeconds: it.RestSeconds,
					WeightKg:    it.WeightKg,
				},
			})
		}
		days[d.ID] = day
	}
	return days, nil
}

// GetPlanDay returns a copy of the plan day if it exists and belongs to userID.
func (c *FileCatalog) GetPlanDay(_ context.Context, userID, planDayID string) (*models.PlanDay, error) {
	c.mu.RLock()
	day, ok := c.days[planDayID]
	c.mu.RUnlock()
	if !ok || day.UserID != userID {
		return nil, apperr.NotFound("plan day", planDayID)
	}

	out := day
	out.Items = make([]models.PlanItem, len(day.Items))
	for i, it := range day.Items {
		it.Prescription = it.Prescription.Clone()
		out.Items[i] = it
	}
	return &out, nil
}
