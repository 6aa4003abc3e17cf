package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fiduciaire/internal/database"
	"fiduciaire/internal/models"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/jwt"
	"fiduciaire/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "motdepasse1"

type envelope struct {
	Code     int                  `json:"code"`
	Message  string               `json:"message"`
	Data     json.RawMessage      `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type testServer struct {
	engine *gin.Engine
	svc    *Services
	jwt    *jwt.Manager
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite("file:"+name+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.MigrateDB(db))

	cfg := &config.Config{
		CORS: config.CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:       1,
		},
		Account: config.AccountConfig{
			VerificationTTL:       48 * time.Hour,
			UnverifiedRetention:   7 * 24 * time.Hour,
			NotificationRetention: 30 * 24 * time.Hour,
			CleanupCron:           "0 3 * * *",
			PublicBaseURL:         "http://localhost:3000",
		},
		PV: config.PVConfig{FirmName: "Cabinet Test", City: "Rabat"},
	}

	svc := NewServices(db, nil, cfg)
	_, err = svc.TypesPV.SeedBuiltinTypes()
	require.NoError(t, err)
	manager := jwt.NewManager("test-secret", time.Hour)

	return &testServer{
		engine: SetupRouter(cfg, svc, manager),
		svc:    svc,
		jwt:    manager,
	}
}

// user creates an approved account and returns it with a valid token.
func (s *testServer) user(t *testing.T, email, role string) (*models.User, string) {
	t.Helper()
	u := &models.User{Email: email, Nom: "Test", Prenom: role, Role: role, Status: models.UserStatusApproved}
	require.NoError(t, u.SetPassword(password))
	require.NoError(t, s.svc.DB.Create(u).Error)
	token, err := s.jwt.GenerateToken(u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) raw(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	w := s.raw(t, method, path, token, body)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, w.Code, env.Code, "HTTP status mirrors the envelope code")
	return env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func societeBody() gin.H {
	return gin.H{
		"raison_sociale":  "Atlas & Fils",
		"forme_juridique": "SARL",
		"capital":         100000,
		"nombre_parts":    1000,
		"ville":           "Casablanca",
		"ice":             "001234567000089",
		"if":              "12345678",
		"date_creation":   "2019-03-01",
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	env := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, 200, env.Code)
	var checks map[string]interface{}
	decode(t, env, &checks)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])
}

func TestRegistrationFlow(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.user(t, "admin@fiduciaire.ma", models.RoleAdmin)

	env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "root@b.ma", "password": password, "nom": "X", "prenom": "Y", "role": "ADMIN",
	})
	assert.Equal(t, 400, env.Code)
	assert.Contains(t, env.Message, "role")

	env = s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "Karim@Atlas.ma", "password": password, "nom": "Alaoui", "prenom": "Karim", "role": "COMPTABLE",
	})
	require.Equal(t, 201, env.Code, env.Message)
	var registered models.User
	decode(t, env, &registered)
	assert.Equal(t, models.UserStatusPendingEmailVerification, registered.Status)
	assert.NotContains(t, string(env.Data), "password")

	env = s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "karim@atlas.ma", "password": password, "nom": "Alaoui", "prenom": "Karim", "role": "COMPTABLE",
	})
	assert.Equal(t, 409, env.Code)

	login := gin.H{"email": "karim@atlas.ma", "password": password}
	env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, 403, env.Code)

	var stored models.User
	require.NoError(t, s.svc.DB.First(&stored, registered.ID).Error)
	require.NotNil(t, stored.EmailVerificationToken)
	env = s.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", gin.H{"token": *stored.EmailVerificationToken})
	require.Equal(t, 200, env.Code, env.Message)

	env = s.do(t, http.MethodGet, "/api/v1/users/pending", adminToken, nil)
	var pending []models.User
	decode(t, env, &pending)
	require.Len(t, pending, 1)

	env = s.do(t, http.MethodPost, "/api/v1/users/"+itoa(registered.ID)+"/approve", adminToken, nil)
	require.Equal(t, 200, env.Code, env.Message)

	env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", login)
	require.Equal(t, 200, env.Code, env.Message)
	var session struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, env, &session)
	assert.NotEmpty(t, session.Token)

	env = s.do(t, http.MethodGet, "/api/v1/auth/me", session.Token, nil)
	var me models.User
	decode(t, env, &me)
	assert.Equal(t, "karim@atlas.ma", me.Email)

	env = s.do(t, http.MethodPost, "/api/v1/auth/refresh", session.Token, nil)
	assert.Equal(t, 200, env.Code)
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.user(t, "admin@fiduciaire.ma", models.RoleAdmin)
	comptable, token := s.user(t, "c@b.ma", models.RoleComptable)

	assert.Equal(t, 401, s.do(t, http.MethodGet, "/api/v1/societes", "", nil).Code)
	assert.Equal(t, 401, s.do(t, http.MethodGet, "/api/v1/societes", "forged", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/societes", nil)
	req.Header.Set("Authorization", "Token "+token)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)

	assert.Equal(t, 200, s.do(t, http.MethodGet, "/api/v1/societes", token, nil).Code)

	// suspension applies to tokens already issued
	env := s.do(t, http.MethodPost, "/api/v1/users/"+itoa(comptable.ID)+"/suspend", adminToken, nil)
	require.Equal(t, 200, env.Code, env.Message)
	assert.Equal(t, 403, s.do(t, http.MethodGet, "/api/v1/societes", token, nil).Code)
	assert.Equal(t, 401, s.do(t, http.MethodPost, "/api/v1/auth/refresh", "forged", nil).Code)
}

func TestRoleGuards(t *testing.T) {
	s := newServer(t)
	_, adminToken := s.user(t, "admin@fiduciaire.ma", models.RoleAdmin)
	_, comptableToken := s.user(t, "c@b.ma", models.RoleComptable)
	assistant, assistantToken := s.user(t, "a@b.ma", models.RoleAssistant)

	assert.Equal(t, 403, s.do(t, http.MethodGet, "/api/v1/users", comptableToken, nil).Code)
	assert.Equal(t, 403, s.do(t, http.MethodGet, "/api/v1/users/pending", assistantToken, nil).Code)
	assert.Equal(t, 403, s.do(t, http.MethodPost, "/api/v1/types-pv", comptableToken, gin.H{"code": "X", "nom": "X"}).Code)
	assert.Equal(t, 403, s.do(t, http.MethodGet, "/api/v1/system/scheduler", comptableToken, nil).Code)

	env := s.do(t, http.MethodGet, "/api/v1/users?page=1&page_size=2", adminToken, nil)
	require.Equal(t, 200, env.Code)
	require.NotNil(t, env.PageInfo)
	assert.Equal(t, int64(3), env.PageInfo.Total)
	assert.Equal(t, 2, env.PageInfo.TotalPages)

	// a comptable may look at an assistant, not the reverse
	assert.Equal(t, 200, s.do(t, http.MethodGet, "/api/v1/users/"+itoa(assistant.ID), comptableToken, nil).Code)
	env = s.do(t, http.MethodGet, "/api/v1/users/1", assistantToken, nil)
	assert.Equal(t, 404, env.Code)

	env = s.do(t, http.MethodGet, "/api/v1/system/scheduler", adminToken, nil)
	require.Equal(t, 200, env.Code)
	assert.Contains(t, string(env.Data), `"cron":"0 3 * * *"`)
}

func TestSocieteEndpoints(t *testing.T) {
	s := newServer(t)
	_, token := s.user(t, "c@b.ma", models.RoleComptable)
	other, otherToken := s.user(t, "o@b.ma", models.RoleComptable)

	bad := societeBody()
	delete(bad, "raison_sociale")
	env := s.do(t, http.MethodPost, "/api/v1/societes", token, bad)
	assert.Equal(t, 400, env.Code)
	assert.Equal(t, "le champ raison_sociale est obligatoire", env.Message)

	bad = societeBody()
	bad["ice"] = "123"
	assert.Equal(t, 400, s.do(t, http.MethodPost, "/api/v1/societes", token, bad).Code)

	env = s.do(t, http.MethodPost, "/api/v1/societes", token, societeBody())
	require.Equal(t, 201, env.Code, env.Message)
	var created models.Societe
	decode(t, env, &created)
	id := itoa(created.ID)

	assert.Equal(t, 409, s.do(t, http.MethodPost, "/api/v1/societes", token, societeBody()).Code)
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/v1/societes/"+id, otherToken, nil).Code)

	for _, a := range []gin.H{
		{"nom": "Alaoui", "prenom": "Karim", "cin": "BK123456", "nombre_parts": 600},
		{"nom": "Bennani", "prenom": "Salma", "cin": "BE654321", "nombre_parts": 400},
	} {
		env = s.do(t, http.MethodPost, "/api/v1/societes/"+id+"/associes", token, a)
		require.Equal(t, 201, env.Code, env.Message)
	}
	env = s.do(t, http.MethodPost, "/api/v1/societes/"+id+"/associes", token, gin.H{"nom": "Trop", "cin": "X1", "nombre_parts": 1})
	assert.Equal(t, 400, env.Code)

	env = s.do(t, http.MethodPost, "/api/v1/societes/"+id+"/gerants", token, gin.H{
		"nom": "Alaoui", "prenom": "Karim", "cin": "BK123456", "date_nomination": "2019-03-01", "duree_mandat": 3,
	})
	require.Equal(t, 201, env.Code, env.Message)
	var gerant models.Gerant
	decode(t, env, &gerant)
	assert.True(t, gerant.IsAssocie)

	env = s.do(t, http.MethodGet, "/api/v1/societes/"+id, token, nil)
	require.Equal(t, 200, env.Code)
	var detail struct {
		models.Societe
		Access string `json:"access"`
	}
	decode(t, env, &detail)
	assert.Equal(t, models.AccessOwner, detail.Access)
	require.Len(t, detail.Associes, 2)
	assert.InDelta(t, 60.0, detail.Associes[0].Pourcentage, 0.001)

	env = s.do(t, http.MethodPost, "/api/v1/societes/"+id+"/members", token, gin.H{"user_id": other.ID, "access": "VIEWER"})
	require.Equal(t, 200, env.Code, env.Message)
	assert.Equal(t, 200, s.do(t, http.MethodGet, "/api/v1/societes/"+id, otherToken, nil).Code)
	assert.Equal(t, 403, s.do(t, http.MethodPut, "/api/v1/societes/"+id, otherToken, societeBody()).Code)

	env = s.do(t, http.MethodGet, "/api/v1/societes/"+id+"/members", token, nil)
	var members []map[string]interface{}
	decode(t, env, &members)
	assert.Len(t, members, 2)

	w := s.raw(t, http.MethodGet, "/api/v1/societes/export?ville=Casablanca", token, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "societes_")
	assert.Contains(t, w.Body.String(), "Atlas & Fils;SARL;100000.00;1000;")

	env = s.do(t, http.MethodDelete, "/api/v1/societes/"+id+"/members/"+itoa(other.ID), token, nil)
	require.Equal(t, 200, env.Code, env.Message)
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/v1/societes/"+id, otherToken, nil).Code)

	assert.Equal(t, 400, s.do(t, http.MethodGet, "/api/v1/societes/abc", token, nil).Code)
	require.Equal(t, 200, s.do(t, http.MethodDelete, "/api/v1/societes/"+id, token, nil).Code)
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/v1/societes/"+id, token, nil).Code)
}

func TestDocumentEndpoints(t *testing.T) {
	s := newServer(t)
	owner, token := s.user(t, "c@b.ma", models.RoleComptable)
	_, strangerToken := s.user(t, "x@b.ma", models.RoleComptable)

	env := s.do(t, http.MethodPost, "/api/v1/societes", token, societeBody())
	require.Equal(t, 201, env.Code, env.Message)
	var so models.Societe
	decode(t, env, &so)
	sid := itoa(so.ID)
	for _, a := range []gin.H{
		{"nom": "Alaoui", "prenom": "Karim", "cin": "BK123456", "nombre_parts": 600},
		{"nom": "Bennani", "prenom": "Salma", "cin": "BE654321", "nombre_parts": 400},
	} {
		require.Equal(t, 201, s.do(t, http.MethodPost, "/api/v1/societes/"+sid+"/associes", token, a).Code)
	}

	env = s.do(t, http.MethodGet, "/api/v1/types-pv", token, nil)
	var types []models.TypePV
	decode(t, env, &types)
	var typeID uint
	for _, tp := range types {
		if tp.Code == "AGO_DIVIDENDES" {
			typeID = tp.ID
		}
	}
	require.NotZero(t, typeID)

	req := gin.H{
		"societe_id":          so.ID,
		"type_pv_id":          typeID,
		"exercice":            2025,
		"date_assemblee":      "2026-06-01T10:30",
		"lieu_assemblee":      "au siège social",
		"resultat_net":        "50 000,00",
		"report_anterieur":    0,
		"dividendes_demandes": 20000,
	}

	env = s.do(t, http.MethodPost, "/api/v1/documents/preview", token, req)
	require.Equal(t, 200, env.Code, env.Message)
	var preview struct {
		Variant string `json:"variant"`
		HTML    string `json:"html"`
	}
	decode(t, env, &preview)
	assert.Equal(t, "DIVIDENDES", preview.Variant)
	assert.Contains(t, preview.HTML, "20 000,00 DH")

	missing := gin.H{"societe_id": so.ID, "type_pv_id": typeID, "exercice": 2025}
	env = s.do(t, http.MethodPost, "/api/v1/documents", token, missing)
	assert.Equal(t, 400, env.Code)
	assert.Contains(t, env.Message, "date_assemblee")

	for _, path := range []string{"/api/v1/documents/preview", "/api/v1/documents"} {
		blank := gin.H{"societe_id": so.ID, "type_pv_id": typeID, "exercice": 2025, "date_assemblee": "   "}
		env = s.do(t, http.MethodPost, path, token, blank)
		assert.Equal(t, 400, env.Code, path)
		assert.Equal(t, "la date de l'assemblée est obligatoire", env.Message, path)

		blank["date_assemblee"] = "demain"
		env = s.do(t, http.MethodPost, path, token, blank)
		assert.Equal(t, 400, env.Code, path)
		assert.Contains(t, env.Message, "date invalide", path)
	}

	env = s.do(t, http.MethodPost, "/api/v1/documents", strangerToken, req)
	assert.Equal(t, 404, env.Code)

	env = s.do(t, http.MethodPost, "/api/v1/documents", token, req)
	require.Equal(t, 201, env.Code, env.Message)
	var doc models.Document
	decode(t, env, &doc)
	assert.Equal(t, owner.ID, doc.CreatedBy)
	did := itoa(doc.ID)

	env = s.do(t, http.MethodGet, "/api/v1/documents?exercice=2025", token, nil)
	require.NotNil(t, env.PageInfo)
	assert.Equal(t, int64(1), env.PageInfo.Total)
	env = s.do(t, http.MethodGet, "/api/v1/documents", strangerToken, nil)
	assert.Equal(t, int64(0), env.PageInfo.Total)

	w := s.raw(t, http.MethodGet, "/api/v1/documents/"+did+"/download?format=pdf", token, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".pdf")

	w = s.raw(t, http.MethodGet, "/api/v1/documents/"+did+"/download", token, nil)
	require.Equal(t, 200, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"), "docx is a zip")

	assert.Equal(t, 400, s.do(t, http.MethodGet, "/api/v1/documents/"+did+"/download?format=xls", token, nil).Code)
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/v1/documents/"+did+"/download?format=html", strangerToken, nil).Code)

	env = s.do(t, http.MethodGet, "/api/v1/stats/dashboard", token, nil)
	require.Equal(t, 200, env.Code)
	var dashboard struct {
		Societes  int64 `json:"societes"`
		Documents int64 `json:"documents"`
	}
	decode(t, env, &dashboard)
	assert.Equal(t, int64(1), dashboard.Societes)
	assert.Equal(t, int64(1), dashboard.Documents)

	require.Equal(t, 200, s.do(t, http.MethodDelete, "/api/v1/documents/"+did, token, nil).Code)
	assert.Equal(t, 404, s.do(t, http.MethodGet, "/api/v1/documents/"+did, token, nil).Code)
}

func TestNotificationEndpoints(t *testing.T) {
	s := newServer(t)
	u, token := s.user(t, "c@b.ma", models.RoleComptable)
	_, otherToken := s.user(t, "o@b.ma", models.RoleComptable)

	first, err := s.svc.Notifications.Notify(context.Background(), u.ID, models.NotificationDocumentReady, "PV prêt", "", "")
	require.NoError(t, err)
	_, err = s.svc.Notifications.Notify(context.Background(), u.ID, models.NotificationDocumentReady, "PV prêt", "", "")
	require.NoError(t, err)

	env := s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	assert.JSONEq(t, `{"count":2}`, string(env.Data))

	assert.Equal(t, 404, s.do(t, http.MethodPost, "/api/v1/notifications/"+itoa(first.ID)+"/read", otherToken, nil).Code)
	require.Equal(t, 200, s.do(t, http.MethodPost, "/api/v1/notifications/"+itoa(first.ID)+"/read", token, nil).Code)

	env = s.do(t, http.MethodGet, "/api/v1/notifications?unread=true", token, nil)
	assert.Equal(t, int64(1), env.PageInfo.Total)

	env = s.do(t, http.MethodPost, "/api/v1/notifications/read-all", token, nil)
	assert.JSONEq(t, `{"updated":1}`, string(env.Data))

	require.Equal(t, 200, s.do(t, http.MethodDelete, "/api/v1/notifications/"+itoa(first.ID), token, nil).Code)
	env = s.do(t, http.MethodGet, "/api/v1/notifications", token, nil)
	assert.Equal(t, int64(1), env.PageInfo.Total)
}

func TestWebSocketWithoutRedis(t *testing.T) {
	s := newServer(t)
	_, token := s.user(t, "c@b.ma", models.RoleComptable)

	assert.Equal(t, 401, s.do(t, http.MethodGet, "/api/v1/ws/notifications", "", nil).Code)
	assert.Equal(t, 401, s.do(t, http.MethodGet, "/api/v1/ws/notifications?token=forged", "", nil).Code)
	assert.Equal(t, 503, s.do(t, http.MethodGet, "/api/v1/ws/notifications?token="+token, "", nil).Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
