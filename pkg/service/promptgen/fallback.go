package promptgen

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	cameraFragments = []string{
		"slow dolly-in on a 35mm lens",
		"sweeping aerial drone shot",
		"handheld tracking shot at eye level",
		"low-angle crane shot rising overhead",
		"steady orbit around the subject",
	}
	lightingFragments = []string{
		"golden hour backlight",
		"soft overcast daylight",
		"moody neon glow with deep shadows",
		"high-contrast chiaroscuro",
		"cool blue twilight",
	}
	styleFragments = []string{
		"cinematic, anamorphic film look",
		"photorealistic, shallow depth of field",
		"stylized 3D animation",
		"documentary realism",
		"dreamlike, painterly texture",
	}
	moodFragments = []string{
		"awe-inspiring",
		"calm and contemplative",
		"tense and suspenseful",
		"playful and energetic",
		"nostalgic",
	}
	durationFragments = []string{"6s", "8s", "10s"}
)

const fallbackNegative = "blurry, distorted faces, watermark, text artifacts, low resolution"

// Fallback builds a prompt locally from fixed fragments. The same input
// always yields the same prompt.
func Fallback(input string) VideoPrompt {
	subject := strings.Join(strings.Fields(input), " ")
	seed := seedFor(Normalize(subject))
	pick := func(list []string, salt uint32) string {
		return list[(seed+salt)%uint32(len(list))]
	}

	camera := pick(cameraFragments, 0)
	lighting := pick(lightingFragments, 7)
	style := pick(styleFragments, 13)
	mood := pick(moodFragments, 29)

	return VideoPrompt{
		Title:          titleFor(subject),
		Prompt:         fmt.Sprintf("%s. %s, %s, %s. The atmosphere feels %s.", sentence(subject), upperFirst(camera), lighting, style, mood),
		Subject:        subject,
		Setting:        subject,
		Camera:         camera,
		Lighting:       lighting,
		Style:          style,
		Mood:           mood,
		Duration:       pick(durationFragments, 3),
		NegativePrompt: fallbackNegative,
	}
}

func seedFor(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func titleFor(subject string) string {
	words := strings.Fields(subject)
	if len(words) > 6 {
		words = words[:6]
	}
	for i, w := range words {
		words[i] = upperFirst(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func sentence(s string) string {
	return upperFirst(strings.TrimRight(s, ".!? "))
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
