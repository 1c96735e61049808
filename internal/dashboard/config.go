package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Config is the kind-specific configuration of a widget. Each kind decodes
// into one of the concrete records below.
type Config interface {
	Validate() error
}

// MetricRef selects one metric series.
type MetricRef struct {
	ID       string `json:"metric_id"`
	Name     string `json:"metric_name,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Color    string `json:"color,omitempty"`
}

var timeframes = map[string]bool{
	"": true, "Hour": true, "Day": true, "Week": true, "Month": true, "Year": true, "Custom": true,
}

// ChartConfig configures the line, area, bar and histogram charts.
type ChartConfig struct {
	Title        string      `json:"title"`
	ChartType    string      `json:"chartType,omitempty"`
	Metrics      []MetricRef `json:"metrics"`
	Timeframe    string      `json:"timeframe,omitempty"`
	FromDate     string      `json:"fromDate,omitempty"`
	ToDate       string      `json:"toDate,omitempty"`
	SummaryTable bool        `json:"summaryTable"`
	Unit         string      `json:"unit,omitempty"`
	TintColor    string      `json:"tintColor,omitempty"`
	ValueColor   string      `json:"valueColor,omitempty"`
	TextColor    string      `json:"textColor,omitempty"`
	Buckets      int         `json:"buckets,omitempty"`
}

func newChartConfig(k Kind) *ChartConfig {
	c := &ChartConfig{Title: "Chart for selected metrics", Timeframe: "Day", Metrics: []MetricRef{}}
	switch k {
	case KindLineChart:
		c.ChartType = "line"
	case KindAreaChart:
		c.ChartType = "area"
	case KindBarChart:
		c.ChartType = "bar"
	case KindHistogram:
		c.ChartType = "histogram"
		c.Buckets = 10
	}
	return c
}

func (c *ChartConfig) Validate() error {
	if !timeframes[c.Timeframe] {
		return fmt.Errorf("%w: unknown timeframe %q", ErrValidation, c.Timeframe)
	}
	if c.Timeframe == "Custom" && (c.FromDate == "" || c.ToDate == "") {
		return fmt.Errorf("%w: custom timeframe needs fromDate and toDate", ErrValidation)
	}
	if c.Buckets < 0 {
		return fmt.Errorf("%w: buckets must not be negative", ErrValidation)
	}
	return validateMetrics(c.Metrics)
}

// PieConfig configures a pie chart.
type PieConfig struct {
	Title      string      `json:"title"`
	Metrics    []MetricRef `json:"metrics"`
	ShowLegend bool        `json:"showLegend"`
	Donut      bool        `json:"donut,omitempty"`
	TintColor  string      `json:"tintColor,omitempty"`
}

func (c *PieConfig) Validate() error {
	return validateMetrics(c.Metrics)
}

// BooleanConfig configures an on/off indicator driven by one metric.
type BooleanConfig struct {
	Title      string     `json:"title"`
	Metric     *MetricRef `json:"metric,omitempty"`
	TrueLabel  string     `json:"trueLabel"`
	FalseLabel string     `json:"falseLabel"`
	TrueColor  string     `json:"trueColor,omitempty"`
	FalseColor string     `json:"falseColor,omitempty"`
}

func newBooleanConfig() *BooleanConfig {
	return &BooleanConfig{Title: "Boolean", TrueLabel: "On", FalseLabel: "Off"}
}

func (c *BooleanConfig) Validate() error {
	if c.Metric != nil && c.Metric.ID == "" {
		return fmt.Errorf("%w: metric without metric_id", ErrValidation)
	}
	return nil
}

// ValueConfig configures the value and headline widgets.
type ValueConfig struct {
	Title      string     `json:"title"`
	Metric     *MetricRef `json:"metric,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Decimals   int        `json:"decimals"`
	LastUpdate string     `json:"lastUpdate,omitempty"`
	TintColor  string     `json:"tintColor,omitempty"`
	ValueColor string     `json:"valueColor,omitempty"`
	TextColor  string     `json:"textColor,omitempty"`
}

func newValueConfig(title string) *ValueConfig {
	return &ValueConfig{Title: title, Decimals: 2}
}

func (c *ValueConfig) Validate() error {
	if c.Decimals < 0 || c.Decimals > 10 {
		return fmt.Errorf("%w: decimals must be within 0..10, got %d", ErrValidation, c.Decimals)
	}
	if c.Metric != nil && c.Metric.ID == "" {
		return fmt.Errorf("%w: metric without metric_id", ErrValidation)
	}
	return nil
}

// ImageConfig configures a static image.
type ImageConfig struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Alt   string `json:"alt,omitempty"`
	Fit   string `json:"fit,omitempty"`
}

func (c *ImageConfig) Validate() error {
	switch c.Fit {
	case "", "contain", "cover", "fill":
	default:
		return fmt.Errorf("%w: unknown image fit %q", ErrValidation, c.Fit)
	}
	return validateURL(c.URL)
}

// TextConfig configures a free-text panel.
type TextConfig struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	FontSize  int    `json:"fontSize,omitempty"`
	Align     string `json:"align,omitempty"`
	TextColor string `json:"textColor,omitempty"`
}

func (c *TextConfig) Validate() error {
	switch c.Align {
	case "", "left", "center", "right", "justify":
	default:
		return fmt.Errorf("%w: unknown text alignment %q", ErrValidation, c.Align)
	}
	if c.FontSize < 0 {
		return fmt.Errorf("%w: font size must not be negative", ErrValidation)
	}
	return nil
}

// Location is a geographic coordinate.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

func (l Location) valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Long >= -180 && l.Long <= 180
}

// MapDevice is a device pinned on a map, with an optional link.
type MapDevice struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
	Link     string   `json:"link,omitempty"`
}

// MapConfig configures a device map.
type MapConfig struct {
	Title               string      `json:"title"`
	Devices             []MapDevice `json:"devices"`
	StartLocation       Location    `json:"startLocation"`
	ManualStartLocation bool        `json:"useManualStartLocation"`
	Zoom                int         `json:"zoom"`
	MapStyle            string      `json:"mapStyle"`
	TintColor           string      `json:"tintColor,omitempty"`
}

func newMapConfig() *MapConfig {
	return &MapConfig{Title: "Map", MapStyle: "Light", Devices: []MapDevice{}}
}

func (c *MapConfig) Validate() error {
	if c.Zoom < 0 || c.Zoom > 22 {
		return fmt.Errorf("%w: zoom must be within 0..22, got %d", ErrValidation, c.Zoom)
	}
	if !c.StartLocation.valid() {
		return fmt.Errorf("%w: start location out of range", ErrValidation)
	}
	seen := make(map[string]bool)
	for _, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("%w: map device without id", ErrValidation)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate map device %q", ErrValidation, d.ID)
		}
		seen[d.ID] = true
		if !d.Location.valid() {
			return fmt.Errorf("%w: device %q location out of range", ErrValidation, d.ID)
		}
		if err := validateURL(d.Link); err != nil {
			return err
		}
	}
	return nil
}

// SliderConfig configures a slider or gauge bound to a metric.
type SliderConfig struct {
	Title          string     `json:"title"`
	Metric         *MetricRef `json:"metric,omitempty"`
	SliderValue    float64    `json:"sliderValue"`
	ValueFrom      float64    `json:"valueFrom"`
	ValueTo        float64    `json:"valueTo"`
	Step           float64    `json:"stepValue"`
	Unit           string     `json:"unit,omitempty"`
	ShowRange      bool       `json:"showRange"`
	Orientation    string     `json:"orientation"`
	ShowGauge      bool       `json:"showGaugeConfig"`
	GaugeMin       float64    `json:"gaugeMin"`
	GaugeMax       float64    `json:"gaugeMax"`
	TintColor      string     `json:"tintColor,omitempty"`
	HighlightColor string     `json:"highlightColor,omitempty"`
}

func newSliderConfig() *SliderConfig {
	return &SliderConfig{
		Title:       "Slider",
		ValueTo:     100,
		Step:        1,
		Orientation: "horizontal",
		GaugeMax:    100,
	}
}

func (c *SliderConfig) Validate() error {
	if c.ValueFrom >= c.ValueTo {
		return fmt.Errorf("%w: valueFrom %g must be below valueTo %g", ErrValidation, c.ValueFrom, c.ValueTo)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive", ErrValidation)
	}
	if c.SliderValue < c.ValueFrom || c.SliderValue > c.ValueTo {
		return fmt.Errorf("%w: slider value %g outside %g..%g", ErrValidation, c.SliderValue, c.ValueFrom, c.ValueTo)
	}
	switch c.Orientation {
	case "", "horizontal", "vertical":
	default:
		return fmt.Errorf("%w: unknown orientation %q", ErrValidation, c.Orientation)
	}
	if c.ShowGauge && c.GaugeMin >= c.GaugeMax {
		return fmt.Errorf("%w: gaugeMin must be below gaugeMax", ErrValidation)
	}
	return nil
}

// IframeConfig embeds an external page.
type IframeConfig struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c *IframeConfig) Validate() error {
	return validateURL(c.URL)
}

// Marker is a point on an image map, in percent of the image size.
type Marker struct {
	ID     string     `json:"id"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Label  string     `json:"label,omitempty"`
	Metric *MetricRef `json:"metric,omitempty"`
}

// ImageMapConfig configures an image with metric markers.
type ImageMapConfig struct {
	Title    string   `json:"title"`
	ImageURL string   `json:"imageUrl"`
	Markers  []Marker `json:"markers"`
}

func (c *ImageMapConfig) Validate() error {
	if err := validateURL(c.ImageURL); err != nil {
		return err
	}
	for _, m := range c.Markers {
		if m.X < 0 || m.X > 100 || m.Y < 0 || m.Y > 100 {
			return fmt.Errorf("%w: marker %q outside the image", ErrValidation, m.ID)
		}
	}
	return nil
}

// Column describes one table column.
type Column struct {
	Field    string `json:"field"`
	Header   string `json:"headerName"`
	Width    int    `json:"width,omitempty"`
	MetricID string `json:"metric_id,omitempty"`
}

// TableConfig configures a device table. Column order is display order.
type TableConfig struct {
	Title        string   `json:"title"`
	DeviceTitle  string   `json:"deviceTitle"`
	Columns      []Column `json:"columns"`
	Pagination   string   `json:"paginationOption"`
	RowsPerPage  int      `json:"devicesPerPage"`
	TintColor    string   `json:"tintColor,omitempty"`
	ColumnsColor string   `json:"columnsColor,omitempty"`
	RowsColor    string   `json:"lignesColor,omitempty"`
}

func newTableConfig() *TableConfig {
	return &TableConfig{Title: "Table", DeviceTitle: "Device", Pagination: "Auto", RowsPerPage: 10, Columns: []Column{}}
}

func (c *TableConfig) Validate() error {
	switch c.Pagination {
	case "", "Auto", "Manual":
	default:
		return fmt.Errorf("%w: unknown pagination option %q", ErrValidation, c.Pagination)
	}
	if c.RowsPerPage < 0 {
		return fmt.Errorf("%w: rows per page must not be negative", ErrValidation)
	}
	seen := make(map[string]bool)
	for _, col := range c.Columns {
		if strings.TrimSpace(col.Field) == "" {
			return fmt.Errorf("%w: table column without field", ErrValidation)
		}
		if seen[col.Field] {
			return fmt.Errorf("%w: duplicate table column %q", ErrValidation, col.Field)
		}
		seen[col.Field] = true
	}
	return nil
}

func validateMetrics(metrics []MetricRef) error {
	for _, m := range metrics {
		if m.ID == "" {
			return fmt.Errorf("%w: metric without metric_id", ErrValidation)
		}
	}
	return nil
}

// validateURL accepts an empty string or an http(s), data or relative URL.
func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q: %v", ErrValidation, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "data", "":
		return nil
	}
	return fmt.Errorf("%w: unsupported url scheme %q", ErrValidation, u.Scheme)
}

// DecodeConfig decodes raw JSON into the configuration record for kind and
// validates it. Empty input yields the kind's defaults.
func (r *Registry) DecodeConfig(kind Kind, raw []byte) (Config, error) {
	cfg, err := r.DefaultConfig(kind)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s config: %v", ErrValidation, kind, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s config: %w", kind, err)
	}
	return cfg, nil
}

// decodeExact decodes raw into a zero-valued record for kind, so that fields
// absent from raw stay zero rather than taking the kind's defaults.
func (r *Registry) decodeExact(kind Kind, raw []byte, validate bool) (Config, error) {
	proto, err := r.DefaultConfig(kind)
	if err != nil {
		return nil, err
	}
	cfg := reflect.New(reflect.TypeOf(proto).Elem()).Interface().(Config)
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: decoding %s config: %v", ErrMalformedDocument, kind, err)
		}
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s config: %w", kind, err)
		}
	}
	return cfg, nil
}

// cloneConfig returns a deep copy of cfg through its JSON form.
func cloneConfig(reg *Registry, kind Kind, cfg Config) (Config, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s config: %w", kind, err)
	}
	return reg.decodeExact(kind, data, false)
}
