package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	timeRe     = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	fpsRe      = regexp.MustCompile(`fps=\s*([\d.]+)`)
	speedRe    = regexp.MustCompile(`speed=\s*([\d.]+)x`)
	bitrateRe  = regexp.MustCompile(`bitrate=\s*([\d.]+)kbits/s`)
	sizeRe     = regexp.MustCompile(`size=\s*(\d+)[kK]i?B`)
	frameRe    = regexp.MustCompile(`frame=\s*(\d+)`)
)

// Progress is one parsed ffmpeg status line.
type Progress struct {
	TimeMs          int64
	TotalDurationMs int64
	Percentage      float64
	FPS             float64
	Speed           float64
	BitrateKbps     float64
	SizeBytes       int64
	Frame           int64
}

// RemainingMs is the media time left to process, never negative.
func (p Progress) RemainingMs() int64 {
	return max(p.TotalDurationMs-p.TimeMs, 0)
}

// EstimatedRemainingMs scales RemainingMs by the processing speed.
func (p Progress) EstimatedRemainingMs() int64 {
	if p.Speed > 0 {
		return int64(float64(p.RemainingMs()) / p.Speed)
	}
	return p.RemainingMs()
}

// String renders the progress in the observer wire form "progress:<percent>".
func (p Progress) String() string {
	return FormatProgress(p.Percentage)
}

// FormatProgress renders a percentage in the observer wire form.
func FormatProgress(percent float64) string {
	return "progress:" + strconv.FormatFloat(percent, 'f', 1, 64)
}

// ProgressParser tracks one ffmpeg run. It learns the input duration from the
// "Duration:" banner and turns subsequent "time=" status lines into Progress.
// Not safe for concurrent use.
type ProgressParser struct {
	totalDurationMs int64
	lastTimeMs      int64
}

// NewProgressParser creates a parser. totalDurationMs may be zero when the
// duration is unknown; it is then taken from the first Duration banner seen.
func NewProgressParser(totalDurationMs int64) *ProgressParser {
	return &ProgressParser{totalDurationMs: totalDurationMs}
}

// Parse inspects one line. It returns false unless the line is a status line
// whose time advanced past the previous one.
func (p *ProgressParser) Parse(line string) (Progress, bool) {
	if p.totalDurationMs == 0 {
		if m := durationRe.FindStringSubmatch(line); m != nil {
			p.totalDurationMs = clockToMs(m)
		}
	}

	if !strings.Contains(line, "time=") {
		return Progress{}, false
	}
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	current := clockToMs(m)
	if current <= p.lastTimeMs {
		return Progress{}, false
	}
	p.lastTimeMs = current

	prog := Progress{
		TimeMs:          current,
		TotalDurationMs: p.totalDurationMs,
		FPS:             matchFloat(fpsRe, line),
		Speed:           matchFloat(speedRe, line),
		BitrateKbps:     matchFloat(bitrateRe, line),
		SizeBytes:       int64(matchFloat(sizeRe, line)) * 1024,
		Frame:           int64(matchFloat(frameRe, line)),
	}
	if p.totalDurationMs > 0 {
		prog.Percentage = min(max(float64(current)/float64(p.totalDurationMs)*100, 0), 100)
	}
	return prog, true
}

// Reset forgets the learned duration and last position.
func (p *ProgressParser) Reset() {
	p.totalDurationMs = 0
	p.lastTimeMs = 0
}

// ParseProgressMessage parses the observer wire form back into a percentage.
func ParseProgressMessage(msg string) (float64, error) {
	rest, ok := strings.CutPrefix(msg, "progress:")
	if !ok {
		return 0, fmt.Errorf("not a progress message: %q", msg)
	}
	return strconv.ParseFloat(rest, 64)
}

func clockToMs(m []string) int64 {
	h, _ := strconv.ParseInt(m[1], 10, 64)
	mins, _ := strconv.ParseInt(m[2], 10, 64)
	s, _ := strconv.ParseInt(m[3], 10, 64)
	cs, _ := strconv.ParseInt(m[4], 10, 64)
	return (h*3600+mins*60+s)*1000 + cs*10
}

func matchFloat(re *regexp.Regexp, line string) float64 {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
