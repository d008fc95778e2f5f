package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/koas-web/koasbackend/config"
	"github.com/koas-web/koasbackend/media"
	"github.com/koas-web/koasbackend/models"
	"github.com/koas-web/koasbackend/repository"
	"github.com/koas-web/koasbackend/sessions"
)

// testServer bundles a live API over temp-dir storage with a cookie-aware
// client.
type testServer struct {
	srv    *httptest.Server
	client *http.Client
	cfg    config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.Config{
		DatabasePath:      filepath.Join(dataDir, "test.db"),
		DataPath:          dataDir,
		PhotosPath:        filepath.Join(dataDir, "photos"),
		SessionsPath:      filepath.Join(dataDir, "sessions"),
		PublicPhotoPrefix: "/Pics",
		AdminUsername:     "KOASADMIN",
		AdminPassword:     "Koas.123!",
		SessionSecret:     "test-secret",
		JpegQuality:       85,
		MaxUploadBytes:    64 << 10, // small cap keeps the size-limit test cheap
		AuthRateLimit:     1000,
		UploadRateLimit:   1000,
		RateLimitWindow:   time.Minute,
		MemberFileMap:     map[string]string{"jack": "JACK G"},
	}

	// main.go creates the storage directories before wiring anything up;
	// mirror that here so the filesystem session store can write records.
	if err := os.MkdirAll(cfg.SessionsPath, 0755); err != nil {
		t.Fatalf("failed to create sessions directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.AdminUser{}, &models.TeamMember{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	admin := &models.AdminUser{Username: cfg.AdminUsername}
	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("failed to seed admin user: %v", err)
	}

	mgr := sessions.NewManager(cfg.SessionsPath, cfg.SessionSecret, false, sessions.DefaultTTL)
	processor, err := media.NewProcessor(cfg.PhotosPath, cfg.JpegQuality)
	if err != nil {
		t.Fatalf("failed to create processor: %v", err)
	}

	api := NewAPI(cfg, repository.NewGormAdminUserRepository(db), repository.NewGormTeamMemberRepository(db), mgr, processor)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Mount("/api", api.Routes())
	r.Get(cfg.PublicPhotoPrefix+"/*", PhotoServer(cfg.PublicPhotoPrefix, cfg.PhotosPath))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &testServer{
		srv:    srv,
		client: &http.Client{Jar: jar},
		cfg:    cfg,
	}
}

func (ts *testServer) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := ts.client.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	resp := ts.postJSON(t, "/api/auth/login", map[string]string{
		"username": ts.cfg.AdminUsername,
		"password": ts.cfg.AdminPassword,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < 10; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func (ts *testServer) upload(t *testing.T, path, member, filename string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if member != "" {
		if err := mw.WriteField("member", member); err != nil {
			t.Fatalf("failed to write member field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	resp, err := ts.client.Post(ts.srv.URL+path, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload to %s failed: %v", path, err)
	}
	return resp
}

// assertNoPhotosWritten fails if anything besides scratch files landed in the
// photo directory.
func assertNoPhotosWritten(t *testing.T, photoDir string) {
	t.Helper()
	entries, err := os.ReadDir(photoDir)
	if err != nil {
		t.Fatalf("failed to read photo dir: %v", err)
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			t.Errorf("rejected upload should write nothing, found %s", entry.Name())
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentialsIdentically(t *testing.T) {
	ts := newTestServer(t)

	readError := func(resp *http.Response) (int, string) {
		var body map[string]string
		decodeBody(t, resp, &body)
		return resp.StatusCode, body["error"]
	}

	unknownStatus, unknownMsg := readError(ts.postJSON(t, "/api/auth/login", map[string]string{
		"username": "nobody", "password": "whatever",
	}))
	wrongStatus, wrongMsg := readError(ts.postJSON(t, "/api/auth/login", map[string]string{
		"username": ts.cfg.AdminUsername, "password": "wrong",
	}))

	if unknownStatus != http.StatusUnauthorized || wrongStatus != http.StatusUnauthorized {
		t.Errorf("expected 401 for both, got %d and %d", unknownStatus, wrongStatus)
	}
	// unknown username and wrong password must be indistinguishable
	if unknownMsg != wrongMsg {
		t.Errorf("responses differ: %q vs %q", unknownMsg, wrongMsg)
	}
	if unknownMsg != "Invalid credentials" {
		t.Errorf("unexpected error message %q", unknownMsg)
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postJSON(t, "/api/auth/login", map[string]string{"username": "KOASADMIN"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", resp.StatusCode)
	}
}

func TestAuthStatusFlow(t *testing.T) {
	ts := newTestServer(t)

	var status struct {
		Authenticated bool `json:"authenticated"`
		User          *struct {
			Username string `json:"username"`
		} `json:"user"`
	}

	decodeBody(t, ts.do(t, "GET", "/api/auth/status", nil), &status)
	if status.Authenticated {
		t.Error("should be unauthenticated before login")
	}

	ts.login(t)

	decodeBody(t, ts.do(t, "GET", "/api/auth/status", nil), &status)
	if !status.Authenticated {
		t.Fatal("should be authenticated after login")
	}
	if status.User == nil || status.User.Username != ts.cfg.AdminUsername {
		t.Errorf("unexpected user in status: %+v", status.User)
	}

	resp := ts.do(t, "POST", "/api/auth/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout failed with %d", resp.StatusCode)
	}

	status.User = nil
	decodeBody(t, ts.do(t, "GET", "/api/auth/status", nil), &status)
	if status.Authenticated {
		t.Error("should be unauthenticated after logout")
	}
}

func TestMutationsRequireSession(t *testing.T) {
	ts := newTestServer(t)

	member := map[string]interface{}{"name": "Jack"}
	for _, c := range []struct {
		method, path string
		body         interface{}
	}{
		{"POST", "/api/team-members", member},
		{"PUT", "/api/team-members/1", member},
		{"DELETE", "/api/team-members/1", nil},
		{"POST", "/api/auth/logout", nil},
		{"POST", "/api/auth/change-password", map[string]string{"currentPassword": "a", "newPassword": "b"}},
		{"GET", "/api/admin/photos", nil},
	} {
		resp := ts.do(t, c.method, c.path, c.body)
		var body map[string]string
		decodeBody(t, resp, &body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", c.method, c.path, resp.StatusCode)
		}
		if body["error"] != "Authentication required" {
			t.Errorf("%s %s: unexpected error %q", c.method, c.path, body["error"])
		}
	}

	// nothing was created by the rejected requests
	var members []models.TeamMember
	decodeBody(t, ts.do(t, "GET", "/api/team-members", nil), &members)
	if len(members) != 0 {
		t.Errorf("expected empty roster, got %d members", len(members))
	}
}

func TestTeamMemberCRUD(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	// create
	var created models.TeamMember
	resp := ts.postJSON(t, "/api/team-members", map[string]interface{}{
		"name": "Jack", "role": "Founder", "display_order": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &created)
	if created.ID == 0 || created.Name != "Jack" {
		t.Fatalf("unexpected created member: %+v", created)
	}

	// create without name is rejected
	resp = ts.postJSON(t, "/api/team-members", map[string]interface{}{"role": "Ghost"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("create without name: expected 400, got %d", resp.StatusCode)
	}

	// get
	var fetched models.TeamMember
	decodeBody(t, ts.do(t, "GET", fmt.Sprintf("/api/team-members/%d", created.ID), nil), &fetched)
	if fetched.Role != "Founder" {
		t.Errorf("unexpected fetched member: %+v", fetched)
	}

	// get unknown
	resp = ts.do(t, "GET", "/api/team-members/9999", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get unknown: expected 404, got %d", resp.StatusCode)
	}

	// update
	var updated models.TeamMember
	resp = ts.do(t, "PUT", fmt.Sprintf("/api/team-members/%d", created.ID), map[string]interface{}{
		"name": "Jack", "role": "CEO", "display_order": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.Role != "CEO" || updated.DisplayOrder != 1 {
		t.Errorf("unexpected updated member: %+v", updated)
	}

	// update unknown
	resp = ts.do(t, "PUT", "/api/team-members/9999", map[string]interface{}{"name": "Ghost"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("update unknown: expected 404, got %d", resp.StatusCode)
	}

	// delete, twice: both succeed
	for i := 0; i < 2; i++ {
		resp = ts.do(t, "DELETE", fmt.Sprintf("/api/team-members/%d", created.ID), nil)
		var body map[string]bool
		decodeBody(t, resp, &body)
		if resp.StatusCode != http.StatusOK || !body["success"] {
			t.Errorf("delete attempt %d: expected success, got %d %v", i+1, resp.StatusCode, body)
		}
	}

	// deleted member is off the public roster
	var members []models.TeamMember
	decodeBody(t, ts.do(t, "GET", "/api/team-members", nil), &members)
	if len(members) != 0 {
		t.Errorf("expected empty roster after delete, got %d members", len(members))
	}
}

func TestListOrdering(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	for _, m := range []map[string]interface{}{
		{"name": "Elena", "display_order": 5},
		{"name": "Jack", "display_order": 1},
		{"name": "Michael", "display_order": 3},
	} {
		resp := ts.postJSON(t, "/api/team-members", m)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed create failed with %d", resp.StatusCode)
		}
	}

	var members []models.TeamMember
	decodeBody(t, ts.do(t, "GET", "/api/team-members", nil), &members)

	want := []string{"Jack", "Michael", "Elena"}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(members))
	}
	for i, name := range want {
		if members[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, members[i].Name)
		}
	}
}

func TestPublicUploadMapsAndOverwrites(t *testing.T) {
	ts := newTestServer(t)

	var result struct {
		Success  bool   `json:"success"`
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	decodeBody(t, ts.upload(t, "/api/upload", "jack", "IMG_0001.jpg", smallJPEG(t)), &result)
	if !result.Success || result.Filename != "JACK G.jpg" {
		t.Fatalf("unexpected upload result: %+v", result)
	}
	if result.URL != "/Pics/JACK G.jpg" {
		t.Errorf("unexpected url %q", result.URL)
	}

	// a second upload for the same member replaces the photo in place
	decodeBody(t, ts.upload(t, "/api/upload", "jack", "IMG_0002.jpg", smallJPEG(t)), &result)
	if result.Filename != "JACK G.jpg" {
		t.Fatalf("second upload: unexpected filename %q", result.Filename)
	}

	ts.login(t)
	var photos struct {
		Photos []string `json:"photos"`
		Count  int      `json:"count"`
	}
	decodeBody(t, ts.do(t, "GET", "/api/admin/photos", nil), &photos)
	if photos.Count != 1 || len(photos.Photos) != 1 || photos.Photos[0] != "JACK G.jpg" {
		t.Errorf("expected a single canonical photo, got %+v", photos)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, "/api/upload", "jack", "notes.txt", []byte("definitely not an image"))
	var body map[string]string
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "Only image files (including HEIC) are allowed" {
		t.Errorf("unexpected error %q", body["error"])
	}

	assertNoPhotosWritten(t, ts.cfg.PhotosPath)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts := newTestServer(t)

	// over the configured cap but under the multipart body cap
	oversized := make([]byte, ts.cfg.MaxUploadBytes+1024)
	copy(oversized, smallJPEG(t))

	resp := ts.upload(t, "/api/upload", "jack", "huge.jpg", oversized)
	var body map[string]string
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "File too large. Maximum size is 10MB." {
		t.Errorf("unexpected error %q", body["error"])
	}

	assertNoPhotosWritten(t, ts.cfg.PhotosPath)
}

func TestUploadRequiresFile(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("member", "jack"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	mw.Close()

	resp, err := ts.client.Post(ts.srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest || errBody["error"] != "No file uploaded" {
		t.Errorf("expected 400 'No file uploaded', got %d %q", resp.StatusCode, errBody["error"])
	}
}

func TestUploadRejectsTraversalNames(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("filename", "../escape"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	fw, err := mw.CreateFormFile("photo", "a.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fw.Write(smallJPEG(t))
	mw.Close()

	resp, err := ts.client.Post(ts.srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for traversal filename, got %d", resp.StatusCode)
	}
}

func TestAdminUploadIncludesMetadata(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	var result struct {
		Success      bool   `json:"success"`
		Filename     string `json:"filename"`
		RelativePath string `json:"relative_path"`
		URL          string `json:"url"`
		Metadata     *struct {
			Width  *int `json:"width"`
			Height *int `json:"height"`
		} `json:"metadata"`
	}
	decodeBody(t, ts.upload(t, "/api/admin/upload", "jack", "IMG_1.jpg", smallJPEG(t)), &result)

	if !result.Success || result.Filename != "JACK G.jpg" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RelativePath != "Pics/JACK G.jpg" {
		t.Errorf("unexpected relative_path %q", result.RelativePath)
	}
	if result.Metadata == nil || result.Metadata.Width == nil || *result.Metadata.Width != 10 {
		t.Errorf("expected metadata with width 10, got %+v", result.Metadata)
	}
}

func TestPhotoServerServesAndGuards(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, "/api/upload", "jack", "IMG_1.jpg", smallJPEG(t))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seed upload failed with %d", resp.StatusCode)
	}

	got, err := ts.client.Get(ts.srv.URL + "/Pics/JACK%20G.jpg")
	if err != nil {
		t.Fatalf("GET photo failed: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for existing photo, got %d", got.StatusCode)
	}
	data, _ := io.ReadAll(got.Body)
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("served photo is not a valid jpeg: %v", err)
	}

	missing, err := ts.client.Get(ts.srv.URL + "/Pics/nope.jpg")
	if err != nil {
		t.Fatalf("GET missing photo failed: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing photo, got %d", missing.StatusCode)
	}

	evil, err := ts.client.Get(ts.srv.URL + "/Pics/..%2F..%2Ftest.db")
	if err != nil {
		t.Fatalf("GET traversal path failed: %v", err)
	}
	evil.Body.Close()
	if evil.StatusCode == http.StatusOK {
		t.Error("path traversal must not be served")
	}
}

func TestChangePasswordFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	// wrong current password is rejected
	resp := ts.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": "wrong", "newPassword": "NewPass.456!",
	})
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusUnauthorized || errBody["error"] != "Current password is incorrect" {
		t.Fatalf("expected 401 for wrong current password, got %d %q", resp.StatusCode, errBody["error"])
	}

	resp = ts.postJSON(t, "/api/auth/change-password", map[string]string{
		"currentPassword": ts.cfg.AdminPassword, "newPassword": "NewPass.456!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change-password failed with %d", resp.StatusCode)
	}

	resp = ts.do(t, "POST", "/api/auth/logout", nil)
	resp.Body.Close()

	// the old password no longer works
	resp = ts.postJSON(t, "/api/auth/login", map[string]string{
		"username": ts.cfg.AdminUsername, "password": ts.cfg.AdminPassword,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("old password should be rejected, got %d", resp.StatusCode)
	}

	// the new one does
	resp = ts.postJSON(t, "/api/auth/login", map[string]string{
		"username": ts.cfg.AdminUsername, "password": "NewPass.456!",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("new password should log in, got %d", resp.StatusCode)
	}
}
