package clock

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/tool"
)

const (
	GetCurrentTime  = "get_current_time"
	DefaultTimezone = "Asia/Jakarta"
)

// Tool tells the model the current time
type Tool struct {
	now func() time.Time
}

var _ tool.Tool = (*Tool)(nil)

type Option func(*Tool)

// WithNow replaces time.Now, for tests
func WithNow(now func() time.Time) Option {
	return func(t *Tool) { t.now = now }
}

func New(opts ...Option) *Tool {
	t := &Tool{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Specs() []*tool.Spec {
	tz := tool.String("Nama timezone IANA, misalnya Asia/Jakarta", 0)
	tz.Default = []byte(`"` + DefaultTimezone + `"`)

	return []*tool.Spec{
		{
			Name:        GetCurrentTime,
			Description: "Mendapatkan waktu saat ini berdasarkan timezone",
			Parameters:  tool.Object(map[string]*jsonschema.Schema{"timezone": tz}),
		},
	}
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	if name != GetCurrentTime {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown clock function", goerr.V("name", name))
	}

	var input struct {
		Timezone string `json:"timezone"`
	}
	if err := tool.Decode(args, &input); err != nil {
		return nil, err
	}
	if input.Timezone == "" {
		input.Timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(input.Timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "unknown timezone "+input.Timezone, goerr.V("timezone", input.Timezone))
	}
	return t.now().In(loc).Format("2006-01-02 15:04:05 MST"), nil
}
