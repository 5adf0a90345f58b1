package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dukerupert/plantcare/internal/careinfo"
	"github.com/dukerupert/plantcare/internal/database"
	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/identify"
	"github.com/dukerupert/plantcare/internal/logging"
	"github.com/dukerupert/plantcare/internal/model"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logging.Discard()
	srv := New(Deps{
		DB:               db,
		Docs:             docstore.NewSQLiteStore(db, logger),
		Advisor:          careinfo.NewAdvisor(careinfo.DefaultTable(), nil, nil, logger),
		Identifier:       identify.NewClient("", ""),
		SessionTTL:       time.Hour,
		ReminderInterval: time.Hour,
		AllowedOrigins:   []string{"http://localhost:3000"},
	}, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// call sends a JSON request and decodes the JSON response into out when set.
func call(t *testing.T, ts *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type authResult struct {
	Token     string           `json:"token"`
	User      *model.User      `json:"user"`
	Household *model.Household `json:"household"`
	Warning   string           `json:"warning"`
}

func register(t *testing.T, ts *httptest.Server, email, username, household string) authResult {
	t.Helper()
	var res authResult
	status := call(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  "hunter22",
		"username":  username,
		"household": household,
	}, &res)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status = %d", email, status)
	}
	if res.Token == "" {
		t.Fatalf("register %s: empty token", email)
	}
	return res
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	var body map[string]string
	if status := call(t, ts, "GET", "/health", "", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := setupServer(t)

	alice := register(t, ts, "alice@example.com", "alice", "Flat 4")
	if alice.Household == nil || len(alice.Household.JoinCode) != 6 {
		t.Fatalf("household = %+v, want a new household with a join code", alice.Household)
	}
	if alice.Warning != "" {
		t.Errorf("warning = %q", alice.Warning)
	}

	if status := call(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22", "username": "again",
	}, nil); status != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", status)
	}
	if status := call(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "hunter22", "username": "x",
	}, nil); status != http.StatusBadRequest {
		t.Errorf("invalid email: status = %d, want 400", status)
	}

	if status := call(t, ts, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, nil); status != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", status)
	}

	var login authResult
	if status := call(t, ts, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	}, &login); status != http.StatusOK {
		t.Fatalf("login: status = %d", status)
	}

	var me struct {
		User       model.User        `json:"user"`
		Households []model.Household `json:"households"`
	}
	if status := call(t, ts, "GET", "/api/me", login.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: status = %d", status)
	}
	if me.User.Username != "alice" || len(me.Households) != 1 || me.Households[0].Name != "Flat 4" {
		t.Errorf("me = %+v", me)
	}

	if status := call(t, ts, "GET", "/api/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("anonymous me: status = %d, want 401", status)
	}

	if status := call(t, ts, "POST", "/api/auth/logout", login.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("logout: status = %d", status)
	}
	if status := call(t, ts, "GET", "/api/me", login.Token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("me after logout: status = %d, want 401", status)
	}
	if status := call(t, ts, "GET", "/api/me", alice.Token, nil, nil); status != http.StatusOK {
		t.Errorf("other session after logout: status = %d, want 200", status)
	}
}

func TestSessionCookie(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")

	req, _ := http.NewRequest("GET", ts.URL+"/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "plantcare_session", Value: alice.Token})
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie auth: status = %d, want 200", resp.StatusCode)
	}
}

func TestHouseholdPlantsFlow(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")
	bob := register(t, ts, "bob@example.com", "bob", "")
	carol := register(t, ts, "carol@example.com", "carol", "")

	var created struct {
		Household model.Household `json:"household"`
	}
	if status := call(t, ts, "POST", "/api/households", alice.Token, map[string]string{"name": "Home"}, &created); status != http.StatusCreated {
		t.Fatalf("create household: status = %d", status)
	}
	hid := created.Household.ID

	if status := call(t, ts, "POST", "/api/households/join", bob.Token, map[string]string{"code": "000000x"}, nil); status != http.StatusBadRequest {
		t.Errorf("bad code: status = %d, want 400", status)
	}
	if status := call(t, ts, "POST", "/api/households/join", bob.Token, map[string]string{"code": created.Household.JoinCode}, nil); status != http.StatusOK {
		t.Fatalf("join: status = %d", status)
	}

	var p model.Plant
	if status := call(t, ts, "POST", "/api/plants", bob.Token, map[string]any{
		"name": "Monstera", "householdId": hid, "wateringDays": 7,
	}, &p); status != http.StatusCreated {
		t.Fatalf("add shared plant: status = %d", status)
	}
	if p.HouseholdID == nil || *p.HouseholdID != hid || p.OwnerID != nil {
		t.Errorf("plant ownership = owner %v household %v", p.OwnerID, p.HouseholdID)
	}

	if status := call(t, ts, "POST", "/api/plants", carol.Token, map[string]any{
		"name": "Intruder", "householdId": hid, "wateringDays": 7,
	}, nil); status != http.StatusForbidden {
		t.Errorf("non-member add: status = %d, want 403", status)
	}

	var plants []model.Plant
	if status := call(t, ts, "GET", "/api/plants?household_id="+hid, alice.Token, nil, &plants); status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	if len(plants) != 1 || plants[0].ID != p.ID {
		t.Errorf("household plants = %+v", plants)
	}
	if status := call(t, ts, "GET", "/api/plants?household_id="+hid, carol.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("non-member list: status = %d, want 403", status)
	}
	if status := call(t, ts, "GET", "/api/households/"+hid, carol.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("non-member get: status = %d, want 403", status)
	}
	if status := call(t, ts, "POST", "/api/plants/"+p.ID+"/water", carol.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("non-member water: status = %d, want 404", status)
	}

	var watered struct {
		Plant model.Plant `json:"plant"`
	}
	if status := call(t, ts, "POST", "/api/plants/"+p.ID+"/water", alice.Token, nil, &watered); status != http.StatusOK {
		t.Fatalf("water: status = %d", status)
	}
	if watered.Plant.TimesWatered != 1 || watered.Plant.LastWatered == nil {
		t.Errorf("watered plant = %+v", watered.Plant)
	}
	if status := call(t, ts, "POST", "/api/plants/"+p.ID+"/water", bob.Token, nil, nil); status != http.StatusConflict {
		t.Errorf("early water: status = %d, want 409", status)
	}

	var activities []model.Activity
	if status := call(t, ts, "GET", "/api/households/"+hid+"/activities", bob.Token, nil, &activities); status != http.StatusOK {
		t.Fatalf("activities: status = %d", status)
	}
	if len(activities) != 1 || activities[0].PlantName != "Monstera" || activities[0].UserID != alice.User.ID {
		t.Errorf("activities = %+v", activities)
	}

	if status := call(t, ts, "POST", "/api/households/"+hid+"/leave", bob.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("leave: status = %d", status)
	}
	if status := call(t, ts, "DELETE", "/api/households/"+hid, carol.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("non-member delete: status = %d, want 403", status)
	}
	if status := call(t, ts, "DELETE", "/api/households/"+hid, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete: status = %d", status)
	}
	if status := call(t, ts, "GET", "/api/households/"+hid, alice.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want 404", status)
	}
	if status := call(t, ts, "PUT", "/api/plants/"+p.ID, alice.Token, map[string]any{"name": "x", "wateringDays": 3}, nil); status != http.StatusNotFound {
		t.Errorf("plant of deleted household: status = %d, want 404", status)
	}

	var hs []model.Household
	call(t, ts, "GET", "/api/households", alice.Token, nil, &hs)
	if len(hs) != 0 {
		t.Errorf("households after delete = %+v", hs)
	}
}

func TestPrivatePlantFlow(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")
	bob := register(t, ts, "bob@example.com", "bob", "")

	var p model.Plant
	if status := call(t, ts, "POST", "/api/plants", alice.Token, map[string]any{"name": "Snake plant"}, &p); status != http.StatusCreated {
		t.Fatalf("add: status = %d", status)
	}
	if p.WateringDays != 14 {
		t.Errorf("watering days = %d, want 14 from the care table", p.WateringDays)
	}
	if p.OwnerID == nil || *p.OwnerID != alice.User.ID {
		t.Errorf("owner = %v", p.OwnerID)
	}

	if status := call(t, ts, "POST", "/api/plants", alice.Token, map[string]any{"name": " ", "wateringDays": 3}, nil); status != http.StatusBadRequest {
		t.Errorf("blank name: status = %d, want 400", status)
	}
	if status := call(t, ts, "POST", "/api/plants", alice.Token, map[string]any{"name": "Fern", "wateringDays": -1}, nil); status != http.StatusBadRequest {
		t.Errorf("negative interval: status = %d, want 400", status)
	}

	var bobs []model.Plant
	call(t, ts, "GET", "/api/plants", bob.Token, nil, &bobs)
	if len(bobs) != 0 {
		t.Errorf("bob sees %d plants, want 0", len(bobs))
	}
	if status := call(t, ts, "DELETE", "/api/plants/"+p.ID, bob.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("foreign delete: status = %d, want 404", status)
	}

	var updated model.Plant
	if status := call(t, ts, "PUT", "/api/plants/"+p.ID, alice.Token, map[string]any{"name": "Sansevieria", "wateringDays": 3}, &updated); status != http.StatusOK {
		t.Fatalf("update: status = %d", status)
	}
	if updated.Name != "Sansevieria" || updated.WateringDays != 3 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.NextWateringDate > p.NextWateringDate {
		t.Errorf("shortened interval moved next watering later: %d > %d", updated.NextWateringDate, p.NextWateringDate)
	}

	if status := call(t, ts, "DELETE", "/api/plants/"+p.ID, alice.Token, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete: status = %d", status)
	}
	var mine []model.Plant
	call(t, ts, "GET", "/api/plants", alice.Token, nil, &mine)
	if len(mine) != 0 {
		t.Errorf("plants after delete = %+v", mine)
	}
}

func TestCareInfo(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")

	var s careinfo.Suggestion
	if status := call(t, ts, "GET", "/api/care-info?name=boston+fern", alice.Token, nil, &s); status != http.StatusOK {
		t.Fatalf("lookup: status = %d", status)
	}
	if s.Info.Name != "Nephrolepis exaltata" || s.Info.WateringDays != 3 || s.Source != careinfo.SourceTable {
		t.Errorf("suggestion = %+v", s)
	}

	if status := call(t, ts, "GET", "/api/care-info?name=triffid", alice.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", status)
	}

	var all []model.PlantCareInfo
	call(t, ts, "GET", "/api/care-info", alice.Token, nil, &all)
	if len(all) != 20 {
		t.Errorf("table size = %d, want 20", len(all))
	}
}

func TestPushWithoutVAPID(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")

	if status := call(t, ts, "GET", "/api/push/vapid-key", alice.Token, nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("vapid key: status = %d, want 503", status)
	}

	var res struct {
		DuePlants []string `json:"duePlants"`
		Notified  int      `json:"notified"`
	}
	call(t, ts, "POST", "/api/plants", alice.Token, map[string]any{"name": "Fern", "wateringDays": 3}, nil)
	if status := call(t, ts, "POST", "/api/reminders/run", alice.Token, nil, &res); status != http.StatusOK {
		t.Fatalf("run reminders: status = %d", status)
	}
	if len(res.DuePlants) != 0 || res.Notified != 0 {
		t.Errorf("result = %+v, want nothing due", res)
	}
}

func TestIdentifyNotConfigured(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")

	if status := call(t, ts, "POST", "/api/plants/identify", alice.Token, nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	ts := setupServer(t)

	body := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	for i := 0; i < 10; i++ {
		if status := call(t, ts, "POST", "/api/auth/login", "", body, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, status)
		}
	}
	if status := call(t, ts, "POST", "/api/auth/login", "", body, nil); status != http.StatusTooManyRequests {
		t.Errorf("11th attempt: status = %d, want 429", status)
	}

	// Someone else in the same household, same address, can still sign in.
	other := map[string]string{"email": "somebody@example.com", "password": "whatever"}
	if status := call(t, ts, "POST", "/api/auth/login", "", other, nil); status != http.StatusUnauthorized {
		t.Errorf("other email: status = %d, want 401", status)
	}
}

func TestLiveFeedThroughRouter(t *testing.T) {
	ts := setupServer(t)
	alice := register(t, ts, "alice@example.com", "alice", "")
	call(t, ts, "POST", "/api/plants", alice.Token, map[string]any{"name": "Fern", "wateringDays": 3}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+alice.Token)
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/plants", &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	var msg struct {
		Type   string        `json:"type"`
		Plants []model.Plant `json:"plants"`
	}
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "plants_snapshot" || len(msg.Plants) != 1 || msg.Plants[0].Name != "Fern" {
		t.Errorf("snapshot = %+v", msg)
	}
}
