package bpmn

import (
	"context"
	"errors"
	"strings"

	"bpmn-backend/internal/config"
	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/metrics"
	"bpmn-backend/pkg/tracer"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
)

const (
	RejectionMessage = "Ваш запрос не относится к моей специализации. Пожалуйста, задайте вопрос, касающийся моделирования бизнес-процессов, BPMN диаграмм или библиотеки processpiper."
	SuccessMessage   = "Диаграмма успешно создана"
	FailureMessage   = "Ошибка при создании диаграммы"
)

var ErrNotDomainRelated = errors.New("request is not related to business process modeling")

// ChatRequest 一次流程图请求，按值传递
type ChatRequest struct {
	UserPrompt           string
	PreviousDiagram      string
	Recommendations      string
	BusinessRequirements string
}

// GenerationResult Success 为 true 时 Image 非空，为 false 时 Error 非空
type GenerationResult struct {
	Success     bool   `json:"success"`
	DiagramText string `json:"diagram_text,omitempty"`
	Image       []byte `json:"image,omitempty"`
	Format      string `json:"format,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
}

// ProcessResult Process 的完整输出
type ProcessResult struct {
	GenerationResult
	Kind            RequestKind
	Recommendations string
	DiagramPath     string
}

// DiagramArchive 保存渲染成功的流程图，返回存储路径
type DiagramArchive interface {
	SaveDiagram(ctx context.Context, text string, image []byte, format string) (string, error)
}

type Option func(*Pipeline)

func WithArchive(a DiagramArchive) Option {
	return func(p *Pipeline) {
		p.archive = a
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// Pipeline 校验 -> 分类 -> 选模板 -> 生成 -> 渲染
type Pipeline struct {
	model       ChatModel
	prompts     *Prompts
	validator   *Validator
	classifier  *Classifier
	recommender *Recommender
	renderer    Renderer
	archive     DiagramArchive

	policy              RetryPolicy
	format              string
	defaultBusiness     string
	autoRecommendations bool
}

func NewPipeline(model ChatModel, renderer Renderer, prompts *Prompts, cfg config.PipelineConfig, format string, opts ...Option) *Pipeline {
	business := cfg.BusinessRequirements
	if business == "" {
		business = config.DefaultBusinessRequirements
	}
	if format == "" {
		format = "png"
	}

	p := &Pipeline{
		model:               model,
		prompts:             prompts,
		validator:           NewValidator(model, prompts),
		classifier:          NewClassifier(model, prompts),
		recommender:         NewRecommender(model, prompts, cfg.MaxRecommendations),
		renderer:            renderer,
		policy:              RetryPolicy{MaxAttempts: cfg.RenderMaxAttempts, Delay: cfg.RenderDelay},
		format:              format,
		defaultBusiness:     business,
		autoRecommendations: cfg.AutoRecommendations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) business(s string) string {
	if strings.TrimSpace(s) == "" {
		return p.defaultBusiness
	}
	return s
}

// DetermineRequestType 先校验再分类，不相关时返回 KindUnrelated
func (p *Pipeline) DetermineRequestType(ctx context.Context, message string) (RequestKind, bool, error) {
	relevant, err := p.validator.Validate(ctx, message)
	if err != nil {
		return "", false, err
	}
	if !relevant {
		return KindUnrelated, false, nil
	}

	kind, err := p.classifier.Classify(ctx, message)
	if err != nil {
		return "", false, err
	}
	return kind, true, nil
}

// Recommend 为已有流程图生成改进建议
func (p *Pipeline) Recommend(ctx context.Context, diagram, process, business string) (string, error) {
	return p.recommender.Recommend(ctx, diagram, process, p.business(business))
}

// Process 处理一次完整的流程图请求。
// 不相关的请求返回 ErrNotDomainRelated；上游为空或渲染失败时返回 Success=false 的结果。
func (p *Pipeline) Process(ctx context.Context, req ChatRequest) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "bpmn.process")
	defer span.End()

	relevant, err := p.validator.Validate(ctx, req.UserPrompt)
	if err != nil {
		return nil, err
	}
	if !relevant {
		logger.Infof("request rejected as unrelated: %.50q", req.UserPrompt)
		return nil, ErrNotDomainRelated
	}

	kind, err := p.classifier.Classify(ctx, req.UserPrompt)
	if err != nil {
		return nil, err
	}

	business := p.business(req.BusinessRequirements)
	recs := req.Recommendations

	// 编辑已有流程图时建议是模板的输入，需要先生成
	if kind == KindEditExisting && strings.TrimSpace(req.PreviousDiagram) != "" && recs == "" && p.autoRecommendations {
		recs = p.recommendQuietly(ctx, req.PreviousDiagram, req.UserPrompt, business)
	}

	kind, msgs, err := p.prompts.SelectTemplate(ctx, TemplateInput{
		Kind:                 kind,
		UserPrompt:           req.UserPrompt,
		PreviousDiagram:      req.PreviousDiagram,
		Recommendations:      recs,
		BusinessRequirements: business,
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestKindTotal.WithLabelValues(kind.String()).Inc()
	span.SetAttributes(attribute.String("bpmn.kind", kind.String()))

	gen, err := p.generateAndRender(ctx, msgs)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{GenerationResult: *gen, Kind: kind}

	if recs == "" && p.autoRecommendations && gen.DiagramText != "" {
		recs = p.recommendQuietly(ctx, gen.DiagramText, req.UserPrompt, business)
	}
	result.Recommendations = recs

	if gen.Success && p.archive != nil {
		path, err := p.archive.SaveDiagram(ctx, gen.DiagramText, gen.Image, gen.Format)
		if err != nil {
			logger.Warnf("failed to archive diagram: %v", err)
		} else {
			result.DiagramPath = path
		}
	}

	return result, nil
}

// GenerateDiagram 直接按描述新建流程图，任何失败都体现在结果中
func (p *Pipeline) GenerateDiagram(ctx context.Context, description string) *GenerationResult {
	ctx, span := tracer.Start(ctx, "bpmn.generate_diagram")
	defer span.End()

	_, msgs, err := p.prompts.SelectTemplate(ctx, TemplateInput{
		Kind:                 KindCreateNew,
		UserPrompt:           description,
		BusinessRequirements: p.defaultBusiness,
	})
	if err != nil {
		return p.failure("", err.Error(), 0)
	}

	gen, err := p.generateAndRender(ctx, msgs)
	if err != nil {
		logger.Errorf("diagram generation failed: %v", err)
		return p.failure("", err.Error(), 0)
	}
	return gen
}

// generateAndRender 只有传输错误返回 error
func (p *Pipeline) generateAndRender(ctx context.Context, msgs []*schema.Message) (*GenerationResult, error) {
	raw, err := generate(ctx, p.model, msgs)
	if err != nil {
		if isEmptyResponse(err) {
			return p.failure("", "LLM returned an empty response", 0), nil
		}
		return nil, err
	}

	text := CleanDiagramText(raw)
	if text == "" {
		return p.failure("", "LLM response contains no diagram text", 0), nil
	}

	return p.render(ctx, text), nil
}

func (p *Pipeline) render(ctx context.Context, text string) *GenerationResult {
	ctx, span := tracer.Start(ctx, "bpmn.render")
	defer span.End()

	var image []byte
	attempts, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		img, err := p.renderer.Render(ctx, text, Destination{Format: p.format})
		if err == nil && len(img) == 0 {
			err = ErrEmptyRender
		}
		if err != nil {
			metrics.RenderAttemptsTotal.WithLabelValues("error").Inc()
			return err
		}
		metrics.RenderAttemptsTotal.WithLabelValues("success").Inc()
		image = img
		return nil
	})
	span.SetAttributes(attribute.Int("bpmn.render_attempts", attempts))

	if err != nil {
		span.RecordError(err)
		logger.Errorf("render failed after %d attempts: %v", attempts, err)
		return p.failure(text, err.Error(), attempts)
	}

	metrics.GenerationTotal.WithLabelValues("success").Inc()
	return &GenerationResult{
		Success:     true,
		DiagramText: text,
		Image:       image,
		Format:      p.format,
		Attempts:    attempts,
	}
}

func (p *Pipeline) failure(text, msg string, attempts int) *GenerationResult {
	metrics.GenerationTotal.WithLabelValues("error").Inc()
	return &GenerationResult{
		Success:     false,
		DiagramText: text,
		Error:       msg,
		Attempts:    attempts,
	}
}

func (p *Pipeline) recommendQuietly(ctx context.Context, diagram, process, business string) string {
	recs, err := p.recommender.Recommend(ctx, diagram, process, business)
	if err != nil {
		logger.Warnf("recommendation generation failed: %v", err)
		return ""
	}
	return recs
}
