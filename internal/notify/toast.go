package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/skysense/internal/errors"
)

// Kind is the severity of a toast
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultToastDuration applies when a toast does not set one
const DefaultToastDuration = 4 * time.Second

// ToastAction is the optional button on a toast
type ToastAction struct {
	Label string `json:"label"`
	Run   func() `json:"-"`
}

// Toast is a transient in-app message
type Toast struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
	Action      *ToastAction  `json:"action,omitempty"`
}

func newToast(kind Kind, title, description string) Toast {
	return Toast{Kind: kind, Title: title, Description: description, Duration: DefaultToastDuration}
}

func Info(title, description string) Toast    { return newToast(KindInfo, title, description) }
func Success(title, description string) Toast { return newToast(KindSuccess, title, description) }
func Warning(title, description string) Toast { return newToast(KindWarning, title, description) }
func Error(title, description string) Toast   { return newToast(KindError, title, description) }

// WithAction attaches a button to the toast
func (t Toast) WithAction(label string, run func()) Toast {
	t.Action = &ToastAction{Label: label, Run: run}
	return t
}

// WithDuration overrides how long the toast stays visible
func (t Toast) WithDuration(d time.Duration) Toast {
	t.Duration = d
	return t
}

// Expired reports whether the toast is no longer visible at now
func (t Toast) Expired(now time.Time) bool {
	return t.Duration > 0 && now.Sub(t.CreatedAt) >= t.Duration
}

// Toaster shows in-app toasts. Show returns the toast id.
type Toaster interface {
	Show(t Toast) string
}

func stamp(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return t
}

// Multi fans a toast out to several toasters under one id
type Multi []Toaster

func (m Multi) Show(t Toast) string {
	t = stamp(t)
	for _, toaster := range m {
		toaster.Show(t)
	}
	return t.ID
}

// LogToaster writes toasts to the log
type LogToaster struct {
	logger *zap.Logger
}

func NewLogToaster(logger *zap.Logger) *LogToaster {
	return &LogToaster{logger: logger}
}

func (l *LogToaster) Show(t Toast) string {
	t = stamp(t)
	fields := []zap.Field{
		zap.String("id", t.ID),
		zap.String("title", t.Title),
		zap.String("description", t.Description),
	}
	if t.Action != nil {
		fields = append(fields, zap.String("action", t.Action.Label))
	}

	switch t.Kind {
	case KindWarning:
		l.logger.Warn("Toast", fields...)
	case KindError:
		l.logger.Error("Toast", fields...)
	default:
		l.logger.Info("Toast", fields...)
	}
	return t.ID
}

// Feed keeps the most recent toasts so a UI can poll and act on them
type Feed struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
	now    func() time.Time
}

// NewFeed creates a feed holding at most limit toasts
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit, now: time.Now}
}

func (f *Feed) Show(t Toast) string {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = f.now()
	}
	t = stamp(t)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.toasts = append(f.toasts, t)
	if over := len(f.toasts) - f.limit; over > 0 {
		f.toasts = append([]Toast(nil), f.toasts[over:]...)
	}
	return t.ID
}

// List returns the toasts that have not expired, oldest first
func (f *Feed) List() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]Toast, 0, len(f.toasts))
	for _, t := range f.toasts {
		if !t.Expired(now) {
			out = append(out, t)
		}
	}
	return out
}

// Invoke runs the toast's action and removes the toast
func (f *Feed) Invoke(id string) error {
	f.mu.Lock()
	idx := -1
	for i, t := range f.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return apperrors.New(apperrors.ErrNotFound.Code, "toast not found: "+id)
	}
	t := f.toasts[idx]
	if t.Action == nil || t.Action.Run == nil {
		f.mu.Unlock()
		return apperrors.New(apperrors.ErrBadRequest.Code, "toast has no action")
	}
	f.toasts = append(f.toasts[:idx], f.toasts[idx+1:]...)
	f.mu.Unlock()

	t.Action.Run()
	return nil
}

// Dismiss removes a toast without running its action
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.toasts {
		if t.ID == id {
			f.toasts = append(f.toasts[:i], f.toasts[i+1:]...)
			return true
		}
	}
	return false
}
