package generate

import (
	"context"
	"strconv"

	"genstudio/internal/jobs"
	"genstudio/internal/services"
)

// Operation names, used as CLI subcommands and API values.
const (
	OpTextToVideo      = "text-to-video"
	OpLongFormVideo    = "long-form-video"
	OpImageToVideo     = "image-to-video"
	OpLipsync          = "lipsync"
	OpFirstToLast      = "first-to-last"
	OpReplaceCharacter = "replace-character"
	OpMoveCharacter    = "move-character"
	OpControlCharacter = "control-character"
	OpInpaint          = "inpaint"
	OpOutpaint         = "outpaint"
	OpRemoveBackground = "remove-background"
)

// Descriptor describes one operation for listings and request validation.
type Descriptor struct {
	Name     string
	Summary  string
	Template string
	// Role names the engine endpoint the operation is served by.
	Role string
	// Prompt reports whether the operation takes a text prompt.
	Prompt bool
	// Media names the file inputs the operation requires, in order.
	Media []string
	// Extra names non-file parameters beyond the prompt.
	Extra []string
}

// Descriptors lists every operation in presentation order.
func Descriptors() []Descriptor {
	return []Descriptor{
		{Name: OpTextToVideo, Summary: "Generate a video from a text prompt", Template: "t2v", Role: RoleGenerate, Prompt: true},
		{Name: OpLongFormVideo, Summary: "Generate a long-form video from an initial image", Template: "long_t2v", Role: RoleGenerate, Prompt: true, Media: []string{"image"}},
		{Name: OpImageToVideo, Summary: "Animate a still image", Template: "I2V_hq_lowvram(USING)", Role: RoleCharacter, Prompt: true, Media: []string{"image"}, Extra: []string{"strength"}},
		{Name: OpLipsync, Summary: "Drive a portrait with an audio track", Template: "lipsync", Role: RoleLipsync, Prompt: true, Media: []string{"image", "audio"}},
		{Name: OpFirstToLast, Summary: "Interpolate between two keyframe images", Template: "FIRST2LAST_frame", Role: RoleCharacter, Prompt: true, Media: []string{"first", "last"}},
		{Name: OpReplaceCharacter, Summary: "Swap a video's subject for a reference character", Template: "replace_char", Role: RoleCharacter, Prompt: true, Media: []string{"video", "image"}},
		{Name: OpMoveCharacter, Summary: "Transfer a video's motion onto a reference character", Template: "move_char", Role: RoleCharacter, Prompt: true, Media: []string{"video", "image"}},
		{Name: OpControlCharacter, Summary: "Re-render motion as a character from a control image", Template: "control_char", Role: RoleCharacter, Prompt: true, Media: []string{"video", "image"}},
		{Name: OpInpaint, Summary: "Repaint a masked video region from a reference image", Template: "inpaint", Role: RoleGenerate, Prompt: true, Media: []string{"video", "image"}},
		{Name: OpOutpaint, Summary: "Extend a video's frame in one direction", Template: "outpaint", Role: RoleCharacter, Prompt: true, Media: []string{"video"}, Extra: []string{"direction", "pixels"}},
		{Name: OpRemoveBackground, Summary: "Strip the background from a video", Template: "remove_bg", Role: RoleGenerate, Media: []string{"video"}},
	}
}

// Describe returns the descriptor for an operation name.
func Describe(op string) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.Name == op {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Params carries a generic operation request, as the HTTP API receives it.
// Media paths point at files already staged on local disk.
type Params struct {
	Prompt    string
	Media     map[string]string
	Direction string
	Pixels    int
	Strength  float64
}

// Dispatch runs the named operation with generic parameters. Unknown
// operations and missing media slots fail before any engine traffic.
func (s *Service) Dispatch(ctx context.Context, op string, p Params) (<-chan jobs.Update, error) {
	media := func(slot string) string { return p.Media[slot] }
	switch op {
	case OpTextToVideo:
		return s.TextToVideo(ctx, p.Prompt)
	case OpLongFormVideo:
		return s.LongFormVideo(ctx, media("image"), p.Prompt)
	case OpImageToVideo:
		return s.ImageToVideo(ctx, media("image"), p.Prompt, p.Strength)
	case OpLipsync:
		return s.Lipsync(ctx, media("image"), media("audio"), p.Prompt)
	case OpFirstToLast:
		return s.FirstToLast(ctx, media("first"), media("last"), p.Prompt)
	case OpReplaceCharacter:
		return s.ReplaceCharacter(ctx, media("video"), media("image"), p.Prompt)
	case OpMoveCharacter:
		return s.MoveCharacter(ctx, media("video"), media("image"), p.Prompt)
	case OpControlCharacter:
		return s.ControlCharacter(ctx, media("video"), media("image"), p.Prompt)
	case OpInpaint:
		return s.Inpaint(ctx, media("video"), media("image"), p.Prompt)
	case OpOutpaint:
		return s.Outpaint(ctx, media("video"), p.Direction, p.Pixels, p.Prompt)
	case OpRemoveBackground:
		return s.RemoveBackground(ctx, media("video"))
	default:
		return nil, services.Wrap(services.ErrValidation, "generate", "dispatch",
			"unknown operation "+strconv.Quote(op), nil)
	}
}
