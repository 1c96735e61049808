package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcatz/dashboard-builder/internal/dashboard"
	"github.com/wcatz/dashboard-builder/internal/store"
	"github.com/wcatz/dashboard-builder/internal/workspace"
)

func newTestServer(t *testing.T) (*httptest.Server, *workspace.Workspace) {
	t.Helper()
	ws := workspace.New(store.NewMemory(), nil)
	ts := httptest.NewServer(New(ws, nil, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, ws
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createDashboard(t *testing.T, ts *httptest.Server, name string) dashboard.Snapshot {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/dashboards", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap dashboard.Snapshot
	decode(t, resp, &snap)
	return snap
}

type widgetResult struct {
	WidgetID  string             `json:"widgetId"`
	Dashboard dashboard.Snapshot `json:"dashboard"`
}

func addWidget(t *testing.T, ts *httptest.Server, id, body string) widgetResult {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/dashboards/"+id+"/widgets", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out widgetResult
	decode(t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["dashboards"])
}

func TestKinds(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/kinds", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var kinds []struct {
		Type string `json:"type"`
		W    int    `json:"w"`
		H    int    `json:"h"`
	}
	decode(t, resp, &kinds)
	assert.Len(t, kinds, 15)
	for _, k := range kinds {
		if k.Type == "boolean" {
			assert.Equal(t, 6, k.W)
			assert.Equal(t, 2, k.H)
		}
	}
}

func TestCreateListGet(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createDashboard(t, ts, "Plant")
	assert.Equal(t, "Plant", snap.DashboardTitle)
	assert.Equal(t, 12, snap.Layout.Columns)
	assert.Empty(t, snap.Panels)

	resp := do(t, http.MethodGet, ts.URL+"/api/dashboards", "")
	var list []workspace.Summary
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, snap.UID, list[0].ID)

	resp = do(t, http.MethodGet, ts.URL+"/api/dashboards/"+snap.UID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/dashboards/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/api/dashboards", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/api/dashboards", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Contains(t, body.Error, "decoding body")
}

func TestUpdateAndDelete(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createDashboard(t, ts, "Plant")

	resp := do(t, http.MethodPut, ts.URL+"/api/dashboards/"+snap.UID, `{"name":"Plant floor","icon":"MdFactory"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated dashboard.Snapshot
	decode(t, resp, &updated)
	assert.Equal(t, "Plant floor", updated.DashboardTitle)
	assert.Equal(t, "MdFactory", updated.Icon)

	resp = do(t, http.MethodPut, ts.URL+"/api/dashboards/"+snap.UID, `{"name":"","icon":"MdBolt"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/api/dashboards/"+snap.UID, "")
	decode(t, resp, &updated)
	assert.Equal(t, "MdFactory", updated.Icon, "rejected update leaves the icon alone")

	resp = do(t, http.MethodDelete, ts.URL+"/api/dashboards/"+snap.UID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, ts.URL+"/api/dashboards/"+snap.UID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWidgetLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createDashboard(t, ts, "Plant")
	base := ts.URL + "/api/dashboards/" + snap.UID + "/widgets/"

	first := addWidget(t, ts, snap.UID, `{"type":"line-chart"}`)
	assert.Equal(t, "widget-0", first.WidgetID)
	second := addWidget(t, ts, snap.UID, `{"type":"value","data":{"title":"Pressure","decimals":1}}`)
	assert.Equal(t, "widget-1", second.WidgetID)

	positions := second.Dashboard.Layout.WidgetPositions
	require.Len(t, positions, 2)
	assert.Equal(t, dashboard.RectDoc{I: "widget-0", X: 0, Y: 0, W: 6, H: 4, IsDraggable: true, IsResizable: true}, positions[0])
	assert.Equal(t, 6, positions[1].X)

	resp := do(t, http.MethodPut, base+"widget-1", `{"title":"Flow","decimals":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited struct {
		Panels []struct {
			ID   string                 `json:"id"`
			Type string                 `json:"type"`
			Data map[string]interface{} `json:"data"`
		} `json:"panels"`
	}
	decode(t, resp, &edited)
	require.Len(t, edited.Panels, 2)
	assert.Equal(t, "value", edited.Panels[1].Type)
	assert.Equal(t, "Flow", edited.Panels[1].Data["title"])
	assert.EqualValues(t, 3, edited.Panels[1].Data["decimals"])

	resp = do(t, http.MethodPut, base+"widget-1", `{"decimals":99}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodPut, base+"widget-9", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"widget-0/duplicate", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dup widgetResult
	decode(t, resp, &dup)
	assert.Equal(t, "widget-2", dup.WidgetID)

	resp = do(t, http.MethodDelete, base+"widget-0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var removed dashboard.Snapshot
	decode(t, resp, &removed)
	assert.Len(t, removed.Panels, 2)

	resp = do(t, http.MethodPost, ts.URL+"/api/dashboards/"+snap.UID+"/widgets", `{"type":"gauge"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLayout(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createDashboard(t, ts, "Plant")
	addWidget(t, ts, snap.UID, `{"type":"text"}`)
	addWidget(t, ts, snap.UID, `{"type":"text"}`)
	url := ts.URL + "/api/dashboards/" + snap.UID + "/layout"

	resp := do(t, http.MethodPut, url, `[{"i":"widget-0","x":0,"y":0,"w":4,"h":4},{"i":"widget-1","x":0,"y":4,"w":12,"h":2}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dashboard.Snapshot
	decode(t, resp, &out)
	assert.Equal(t, 12, out.Layout.WidgetPositions[1].W)

	resp = do(t, http.MethodPut, url, `[{"i":"widget-0","x":0,"y":0,"w":4,"h":4},{"i":"widget-1","x":2,"y":2,"w":4,"h":4}]`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = do(t, http.MethodPut, url, `[{"i":"widget-0","x":0,"y":0,"w":4,"h":4}]`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	ts, _ := newTestServer(t)
	snap := createDashboard(t, ts, "Plant/floor")

	resp := do(t, http.MethodGet, ts.URL+"/api/dashboards/"+snap.UID+"/export", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty dashboards are not exported")

	addWidget(t, ts, snap.UID, `{"type":"map"}`)
	resp = do(t, http.MethodGet, ts.URL+"/api/dashboards/"+snap.UID+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="Plant_floor.json"`, resp.Header.Get("Content-Disposition"))
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = do(t, http.MethodPost, ts.URL+"/api/import", string(exported))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var imported dashboard.Snapshot
	decode(t, resp, &imported)
	assert.NotEqual(t, snap.UID, imported.UID)
	assert.Equal(t, "Plant/floor", imported.DashboardTitle)
	assert.Len(t, imported.Panels, 1)

	resp = do(t, http.MethodPost, ts.URL+"/api/import", `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodOptions, ts.URL+"/api/dashboards", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodPatch, ts.URL+"/api/dashboards", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestConfigValidate(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/api/config/validate", "dashboards:\n  plant:\n    title: Plant\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 1, body["dashboards"])

	resp = do(t, http.MethodPost, ts.URL+"/api/config/validate", "grid:\n  scan: half\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodPost, ts.URL+"/api/config/validate", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportFilename(t *testing.T) {
	tests := map[string]string{
		"Plant":       "Plant.json",
		"../etc":      "_etc.json",
		"":            "dashboard.json",
		`say "hi"`:    "say _hi_.json",
		"a\\b\nc":     "a_b_c.json",
		"  trimmed  ": "trimmed.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, exportFilename(in), "input %q", in)
	}
}
