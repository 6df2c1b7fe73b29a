// Package awsinvoker adapts aws-sdk-go-v2 service clients to the invoker
// contract. Operation X maps to the client method
// X(ctx, *XInput, ...func(*Options)) (*XOutput, error).
package awsinvoker

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/pkg/invoker"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// DefaultConfigLoader loads the shared AWS configuration
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// Adapter invokes operations on an AWS service client by reflection
type Adapter struct {
	service    string
	client     reflect.Value
	transcoder naming.Transcoder
	required   map[string]map[string]bool

	mu         sync.RWMutex
	operations map[string]*operation
}

type operation struct {
	method reflect.Value
	input  reflect.Type
	params []invoker.Param
}

// Option configures an Adapter
type Option func(*Adapter)

// WithRequired marks wire params of op as required
func WithRequired(op string, params ...string) Option {
	return func(a *Adapter) {
		if a.required[op] == nil {
			a.required[op] = make(map[string]bool)
		}
		for _, p := range params {
			a.required[op][p] = true
		}
	}
}

// WithTranscoder sets the naming policy for local param names
func WithTranscoder(tc naming.Transcoder) Option {
	return func(a *Adapter) {
		if tc != nil {
			a.transcoder = tc
		}
	}
}

func withRequiredTable(table map[string][]string) Option {
	return func(a *Adapter) {
		for op, params := range table {
			WithRequired(op, params...)(a)
		}
	}
}

// New creates an adapter over client for service
func New(service string, client any, opts ...Option) *Adapter {
	a := &Adapter{
		service:    service,
		client:     reflect.ValueOf(client),
		transcoder: naming.Default{},
		required:   make(map[string]map[string]bool),
		operations: make(map[string]*operation),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewSQS creates an adapter over an SQS client
func NewSQS(cfg aws.Config, opts ...Option) *Adapter {
	opts = append([]Option{withRequiredTable(sqsRequired)}, opts...)
	return New("sqs", sqs.NewFromConfig(cfg), opts...)
}

// NewSNS creates an adapter over an SNS client
func NewSNS(cfg aws.Config, opts ...Option) *Adapter {
	opts = append([]Option{withRequiredTable(snsRequired)}, opts...)
	return New("sns", sns.NewFromConfig(cfg), opts...)
}

// NewForService creates an adapter for a supported service name
func NewForService(service string, cfg aws.Config, opts ...Option) (*Adapter, error) {
	switch service {
	case "sqs":
		return NewSQS(cfg, opts...), nil
	case "sns":
		return NewSNS(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("no aws client for service %q", service)
	}
}

// LoadConfig loads the default AWS configuration, overriding the region and
// endpoint when they are set
func LoadConfig(ctx context.Context, region, endpoint string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	if region != "" {
		cfg.Region = region
	}
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}
	return cfg, nil
}

// Service returns the service name the adapter was created for
func (a *Adapter) Service() string {
	return a.service
}

// Operations lists every method of the client that has the operation shape
func (a *Adapter) Operations() []string {
	var names []string
	t := a.client.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if _, ok := operationInput(m.Type, true); ok {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// operationInput checks a method type has the operation shape and returns
// its input struct type. Method types from reflect.Type include the receiver.
func operationInput(mt reflect.Type, withReceiver bool) (reflect.Type, bool) {
	offset := 0
	if withReceiver {
		offset = 1
	}
	if mt.NumIn() < 2+offset || mt.NumOut() != 2 {
		return nil, false
	}
	if mt.In(offset) != contextType || mt.Out(1) != errorType {
		return nil, false
	}
	in := mt.In(offset + 1)
	if in.Kind() != reflect.Pointer || in.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	return in.Elem(), true
}

func (a *Adapter) lookup(op string) (*operation, error) {
	a.mu.RLock()
	cached, ok := a.operations[op]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	method := a.client.MethodByName(op)
	if !method.IsValid() {
		return nil, invoker.UnknownOperation(op)
	}
	input, ok := operationInput(method.Type(), false)
	if !ok {
		return nil, invoker.UnknownOperation(op)
	}

	entry := &operation{
		method: method,
		input:  input,
		params: a.describe(op, input),
	}

	a.mu.Lock()
	a.operations[op] = entry
	a.mu.Unlock()
	return entry, nil
}

func (a *Adapter) describe(op string, input reflect.Type) []invoker.Param {
	params := make([]invoker.Param, 0, input.NumField())
	for i := 0; i < input.NumField(); i++ {
		f := input.Field(i)
		if !f.IsExported() {
			continue
		}
		params = append(params, invoker.Param{
			Name:     a.transcoder.ToLocal(f.Name),
			APIName:  f.Name,
			Required: a.required[op][f.Name],
			Type:     typeTag(f.Type),
		})
	}
	return params
}

// ExpectedParams reflects the operation's input struct
func (a *Adapter) ExpectedParams(op string) ([]invoker.Param, error) {
	entry, err := a.lookup(op)
	if err != nil {
		return nil, err
	}
	return append([]invoker.Param(nil), entry.params...), nil
}

// Invoke builds the input struct from params, calls the client and flattens
// the output into a wire-keyed map
func (a *Adapter) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	entry, err := a.lookup(op)
	if err != nil {
		return nil, err
	}

	input := reflect.New(entry.input)
	if err := assignStruct(input.Elem(), params, a.transcoder); err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.service, op, err)
	}

	out := entry.method.Call([]reflect.Value{reflect.ValueOf(ctx), input})
	if errVal := out[1]; !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}

	result, _ := toWire(out[0]).(map[string]any)
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
