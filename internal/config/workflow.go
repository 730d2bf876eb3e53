package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const workflowKey = "collections"

func DefaultWorkflowConfig() domain.WorkflowConfig {
	return domain.WorkflowConfig{
		Stages: []domain.StageDefinition{
			{ID: "pre_due", Name: "Pre-due reminder", OffsetDays: -3, ActionType: domain.ActionTypeReminder, Priority: domain.PriorityLow, MessageTemplate: "Invoice {invoice_number} for {amount} is due soon.", AutoExecute: true},
			{ID: "due_date", Name: "Due date notice", OffsetDays: 0, ActionType: domain.ActionTypeEmail, Priority: domain.PriorityLow, MessageTemplate: "Invoice {invoice_number} for {amount} is due today.", AutoExecute: true},
			{ID: "first_reminder", Name: "First reminder", OffsetDays: 7, ActionType: domain.ActionTypeEmail, Priority: domain.PriorityMedium, MessageTemplate: "Dear {client_name}, invoice {invoice_number} for {amount} is overdue."},
			{ID: "first_call", Name: "First call", OffsetDays: 14, ActionType: domain.ActionTypeCall, Priority: domain.PriorityMedium, MessageTemplate: "Call {client_name} about invoice {invoice_number}."},
			{ID: "escalation", Name: "Escalation", OffsetDays: 30, ActionType: domain.ActionTypeEscalation, Priority: domain.PriorityHigh, MessageTemplate: "Escalate invoice {invoice_number} ({amount}) for {client_name}."},
			{ID: "legal", Name: "Legal notice", OffsetDays: 60, ActionType: domain.ActionTypeLegal, Priority: domain.PriorityCritical, MessageTemplate: "Prepare legal notice for {client_name}, invoice {invoice_number}."},
		},
		GraceDays:               3,
		ReminderFrequencyDays:   7,
		AutoEscalate:            false,
		NotifySupervisor:        true,
		CriticalAmountThreshold: decimal.NewFromInt(50_000),
	}
}

// WorkflowConfigHolder serves the current workflow configuration. A reload
// replaces the whole value; readers never observe a partially applied file.
type WorkflowConfigHolder struct {
	current atomic.Value // holds domain.WorkflowConfig
}

func NewStaticWorkflowConfigHolder(cfg domain.WorkflowConfig) *WorkflowConfigHolder {
	holder := &WorkflowConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewWorkflowConfigHolder(appCfg Config, log *zap.Logger) (*WorkflowConfigHolder, error) {
	log = log.Named("config.workflow")
	v := newWorkflowViper(appCfg.WorkflowFile)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("workflow config file not found, using defaults")
		return NewStaticWorkflowConfigHolder(DefaultWorkflowConfig()), nil
	}

	cfg, err := decodeWorkflowConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticWorkflowConfigHolder(cfg)
	log.Info("workflow config loaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.Int("stages", len(cfg.Stages)),
	)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeWorkflowConfig(v)
		if err != nil {
			log.Warn("invalid workflow config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("workflow config reloaded", zap.String("file", e.Name), zap.Int("stages", len(updated.Stages)))
	})
	v.WatchConfig()

	return holder, nil
}

// Get returns the current configuration. The stage slice is copied so callers
// cannot mutate the shared value.
func (h *WorkflowConfigHolder) Get() domain.WorkflowConfig {
	cfg := h.current.Load().(domain.WorkflowConfig)
	cfg.Stages = slices.Clone(cfg.Stages)
	return cfg
}

// LoadWorkflowConfigFile reads and validates a single workflow file without
// watching it.
func LoadWorkflowConfigFile(path string) (domain.WorkflowConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultWorkflowConfig(), nil
	}
	v := newWorkflowViper(path)
	if err := v.ReadInConfig(); err != nil {
		return domain.WorkflowConfig{}, err
	}
	return decodeWorkflowConfig(v)
}

func newWorkflowViper(file string) *viper.Viper {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("workflow")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/collections/config")
		v.AddConfigPath("/etc/collections")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COLLECTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decodeWorkflowConfig(v *viper.Viper) (domain.WorkflowConfig, error) {
	var cfg domain.WorkflowConfig
	err := v.UnmarshalKey(workflowKey, &cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return domain.WorkflowConfig{}, err
	}
	if err := ValidateWorkflowConfig(cfg); err != nil {
		return domain.WorkflowConfig{}, err
	}
	return cfg, nil
}

func decimalDecodeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch value := data.(type) {
		case nil:
			return decimal.Zero, nil
		case string:
			return decimal.NewFromString(strings.TrimSpace(value))
		case int:
			return decimal.NewFromInt(int64(value)), nil
		case int64:
			return decimal.NewFromInt(value), nil
		case uint64:
			return decimal.NewFromUint64(value), nil
		case float64:
			return decimal.NewFromFloat(value), nil
		case decimal.Decimal:
			return value, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into decimal", data)
		}
	}
}

// ValidateWorkflowConfig rejects catalogs the engine cannot evaluate.
func ValidateWorkflowConfig(cfg domain.WorkflowConfig) error {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.GraceDays, validation.Min(0)),
		validation.Field(&cfg.ReminderFrequencyDays, validation.Min(0)),
		validation.Field(&cfg.CriticalAmountThreshold, validation.By(nonNegativeDecimal)),
		validation.Field(&cfg.Stages, validation.Each(validation.By(validateStage))),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		if _, ok := seen[stage.ID]; ok {
			return fmt.Errorf("stages: duplicate stage id %q", stage.ID)
		}
		seen[stage.ID] = struct{}{}
	}
	return nil
}

func nonNegativeDecimal(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return fmt.Errorf("expected decimal, got %T", value)
	}
	if d.IsNegative() {
		return validation.NewError("validation_negative_amount", "must not be negative")
	}
	return nil
}

func validateStage(value any) error {
	stage, ok := value.(domain.StageDefinition)
	if !ok {
		return fmt.Errorf("expected stage definition, got %T", value)
	}

	actionTypes := make([]any, 0, len(domain.StageActionTypes))
	for _, t := range domain.StageActionTypes {
		actionTypes = append(actionTypes, t)
	}
	priorities := make([]any, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		priorities = append(priorities, p)
	}

	return validation.ValidateStruct(&stage,
		validation.Field(&stage.ID, validation.Required),
		validation.Field(&stage.ActionType, validation.Required, validation.In(actionTypes...)),
		validation.Field(&stage.Priority, validation.Required, validation.In(priorities...)),
	)
}
