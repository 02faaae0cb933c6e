package format

type ProfileData struct {
	Nodes   [][]RenderingNode `json:"rows"`
	Strings []string          `json:"stringTable"`
	Meta    ProfileMeta       `json:"meta"`
}

type StringIndex = int

type ProfileMeta struct {
	EventType  StringIndex `json:"eventType"`
	FrameType  StringIndex `json:"frameType"`
	Title      StringIndex `json:"title"`
	FlameChart bool        `json:"flameChart,omitempty"`
	Version    int         `json:"version"`
}

// RenderingNode is one frame of the graph. Nodes are grouped by depth and
// ordered by horizontal position; ParentIndex points into the previous row.
type RenderingNode struct {
	ParentIndex int         `json:"parentIndex"`
	TextID      StringIndex `json:"textId"`
	SampleCount int64       `json:"sampleCount"`
	EventCount  float64     `json:"eventCount"`
}
