package generate

import (
	"context"
	"log/slog"
	"os"

	"genstudio/internal/config"
	"genstudio/internal/jobs"
	"genstudio/internal/logging"
	"genstudio/internal/media"
	"genstudio/internal/services"
	"genstudio/internal/workflow"
)

// Server roles as configured in [servers].
const (
	RoleLipsync   = "lipsync"
	RoleCharacter = "character"
	RoleGenerate  = "generate"
)

// Outpaint directions accepted by Outpaint.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
	DirectionUp    = "up"
	DirectionDown  = "down"
)

// imageToVideoMaxDim bounds the longer edge of image-to-video inputs before
// upload. The engine's sampler wants dimensions divisible by 16, which the
// resize helper guarantees.
const imageToVideoMaxDim = 832

// JobStarter runs prepared job requests. Satisfied by jobs.Runner and by the
// dispatch pool.
type JobStarter interface {
	Run(ctx context.Context, req jobs.Request) <-chan jobs.Update
}

// Service binds user-facing operations to their templates, engine roles, and
// node field tables.
type Service struct {
	starter JobStarter
	cfg     *config.Config
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(starter JobStarter, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		starter: starter,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "generate"),
	}
}

// TextToVideo generates a clip from a text prompt alone.
func (s *Service) TextToVideo(ctx context.Context, prompt string) (<-chan jobs.Update, error) {
	return s.start(ctx, jobs.Request{
		Operation:   OpTextToVideo,
		Template:    "t2v",
		Assignments: []workflow.Assignment{workflow.Assign("89", "text", prompt)},
	}, RoleGenerate)
}

// LongFormVideo generates an extended clip seeded from an initial image.
func (s *Service) LongFormVideo(ctx context.Context, imagePath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"image": imagePath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation:   OpLongFormVideo,
		Template:    "long_t2v",
		Assignments: []workflow.Assignment{workflow.Assign("6", "text", prompt)},
		Files:       []jobs.FileInput{{NodeID: "119", Param: "image", Path: imagePath}},
	}, RoleGenerate)
}

// ImageToVideo animates a still image. The image is resized so its longer
// edge fits 832px before upload; if resizing fails the original file is sent
// as-is.
func (s *Service) ImageToVideo(ctx context.Context, imagePath, prompt string, strength float64) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"image": imagePath}); err != nil {
		return nil, err
	}
	if resized, err := media.ResizeToFit(imagePath, imageToVideoMaxDim); err != nil {
		s.logger.Warn("input resize failed, sending original",
			logging.String("path", imagePath),
			logging.Error(err),
		)
	} else {
		imagePath = resized
	}
	return s.start(ctx, jobs.Request{
		Operation: OpImageToVideo,
		Template:  "I2V_hq_lowvram(USING)",
		Assignments: []workflow.Assignment{
			workflow.Assign("6", "text", prompt),
			workflow.Assign("245", "crop", "disabled"),
		},
		Files: []jobs.FileInput{{NodeID: "88", Param: "image", Path: imagePath}},
	}, RoleCharacter)
}

// Lipsync drives a portrait with an audio track. Output dimensions are chosen
// from the portrait's aspect ratio before submission.
func (s *Service) Lipsync(ctx context.Context, imagePath, audioPath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"image": imagePath, "audio": audioPath}); err != nil {
		return nil, err
	}
	box := media.Box{Width: 512, Height: 512}
	if w, h, err := media.Dimensions(imagePath); err != nil {
		s.logger.Warn("could not read portrait dimensions, using square output",
			logging.String("path", imagePath),
			logging.Error(err),
		)
	} else {
		box = media.LipsyncBox(w, h)
	}
	return s.start(ctx, jobs.Request{
		Operation: OpLipsync,
		Template:  "lipsync",
		Assignments: []workflow.Assignment{
			workflow.Assign("17", "text", prompt),
			workflow.Assign("14", "width", box.Width),
			workflow.Assign("14", "height", box.Height),
		},
		Files: []jobs.FileInput{
			{NodeID: "12", Param: "image", Path: imagePath},
			{NodeID: "19", Param: "audio", Path: audioPath},
		},
	}, RoleLipsync)
}

// FirstToLast interpolates a clip between two keyframe images.
func (s *Service) FirstToLast(ctx context.Context, firstPath, lastPath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"first image": firstPath, "last image": lastPath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation:   OpFirstToLast,
		Template:    "FIRST2LAST_frame",
		Assignments: []workflow.Assignment{workflow.Assign("6", "text", prompt)},
		Files: []jobs.FileInput{
			{NodeID: "68", Param: "image", Path: firstPath},
			{NodeID: "62", Param: "image", Path: lastPath},
		},
	}, RoleCharacter)
}

// ReplaceCharacter swaps the subject of a video for a reference character.
func (s *Service) ReplaceCharacter(ctx context.Context, videoPath, characterPath, prompt string) (<-chan jobs.Update, error) {
	return s.characterEdit(ctx, OpReplaceCharacter, "replace_char", videoPath, characterPath, prompt)
}

// MoveCharacter transfers the motion of a video onto a reference character.
func (s *Service) MoveCharacter(ctx context.Context, videoPath, characterPath, prompt string) (<-chan jobs.Update, error) {
	return s.characterEdit(ctx, OpMoveCharacter, "move_char", videoPath, characterPath, prompt)
}

// characterEdit covers the replace and move operations, which share a node
// table and differ only in template.
func (s *Service) characterEdit(ctx context.Context, op, template, videoPath, characterPath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"video": videoPath, "character image": characterPath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation:   op,
		Template:    template,
		Assignments: []workflow.Assignment{workflow.Assign("227", "text", prompt)},
		Files: []jobs.FileInput{
			{NodeID: "417", Param: "video", Path: videoPath},
			{NodeID: "311", Param: "image", Path: characterPath},
		},
	}, RoleCharacter)
}

// ControlCharacter re-renders a video's motion as a character described by a
// control image.
func (s *Service) ControlCharacter(ctx context.Context, videoPath, controlPath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"video": videoPath, "control image": controlPath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation:   OpControlCharacter,
		Template:    "control_char",
		Assignments: []workflow.Assignment{workflow.Assign("179", "text", prompt)},
		Files: []jobs.FileInput{
			{NodeID: "174", Param: "video", Path: videoPath},
			{NodeID: "178", Param: "image", Path: controlPath},
		},
	}, RoleCharacter)
}

// Inpaint repaints a masked region of a video guided by a reference image.
func (s *Service) Inpaint(ctx context.Context, videoPath, referencePath, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"video": videoPath, "reference image": referencePath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation:   OpInpaint,
		Template:    "inpaint",
		Assignments: []workflow.Assignment{workflow.Assign("129", "text", prompt)},
		Files: []jobs.FileInput{
			{NodeID: "109", Param: "video", Path: videoPath},
			{NodeID: "146", Param: "image", Path: referencePath},
		},
	}, RoleGenerate)
}

// Outpaint extends a video's frame in one direction by the given pixel count.
func (s *Service) Outpaint(ctx context.Context, videoPath, direction string, pixels int, prompt string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"video": videoPath}); err != nil {
		return nil, err
	}
	pads, err := outpaintPads(direction, pixels)
	if err != nil {
		return nil, err
	}
	assignments := []workflow.Assignment{workflow.Assign("6", "text", prompt)}
	for _, side := range []string{"left", "top", "right", "bottom"} {
		assignments = append(assignments, workflow.Assign("110", side, pads[side]))
	}
	return s.start(ctx, jobs.Request{
		Operation:   OpOutpaint,
		Template:    "outpaint",
		Assignments: assignments,
		Files:       []jobs.FileInput{{NodeID: "71", Param: "video", Path: videoPath}},
	}, RoleCharacter)
}

// RemoveBackground strips the background from a video.
func (s *Service) RemoveBackground(ctx context.Context, videoPath string) (<-chan jobs.Update, error) {
	if err := requireFiles(map[string]string{"video": videoPath}); err != nil {
		return nil, err
	}
	return s.start(ctx, jobs.Request{
		Operation: OpRemoveBackground,
		Template:  "remove_bg",
		Files:     []jobs.FileInput{{NodeID: "1", Param: "video", Path: videoPath}},
	}, RoleGenerate)
}

func (s *Service) start(ctx context.Context, req jobs.Request, role string) (<-chan jobs.Update, error) {
	server, err := s.cfg.ServerFor(role)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "generate", req.Operation, "resolve engine server", err)
	}
	req.Server = server
	s.logger.Info("starting generation",
		logging.String(logging.FieldOperation, req.Operation),
		logging.String(logging.FieldTemplate, req.Template),
		logging.String(logging.FieldServer, server),
	)
	return s.starter.Run(ctx, req), nil
}

// requireFiles checks every named input path exists locally before any
// network traffic happens.
func requireFiles(paths map[string]string) error {
	for label, path := range paths {
		if path == "" {
			return services.Wrap(services.ErrMissingInput, "generate", "validate",
				"missing required "+label, nil)
		}
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrMissingInput, "generate", "validate",
				"required "+label+" not found at "+path, err)
		}
	}
	return nil
}

func outpaintPads(direction string, pixels int) (map[string]int, error) {
	pads := map[string]int{"left": 0, "top": 0, "right": 0, "bottom": 0}
	if pixels < 0 {
		return nil, services.Wrap(services.ErrValidation, "generate", "outpaint",
			"pad pixels must not be negative", nil)
	}
	switch direction {
	case DirectionLeft:
		pads["left"] = pixels
	case DirectionRight:
		pads["right"] = pixels
	case DirectionUp:
		pads["top"] = pixels
	case DirectionDown:
		pads["bottom"] = pixels
	default:
		return nil, services.Wrap(services.ErrValidation, "generate", "outpaint",
			"unknown outpaint direction "+direction, nil)
	}
	return pads, nil
}
