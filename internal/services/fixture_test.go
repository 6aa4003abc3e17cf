package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fiduciaire/internal/database"
	"fiduciaire/internal/models"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/money"
	"fiduciaire/pkg/queue"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "motdepasse1"

type fakeMail struct {
	mu   sync.Mutex
	sent []queue.MailMessage
}

func (m *fakeMail) EnqueueMail(_ context.Context, msg queue.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMail) last() queue.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return queue.MailMessage{}
	}
	return m.sent[len(m.sent)-1]
}

type fakePublisher struct {
	mu       sync.Mutex
	received []uint
}

func (p *fakePublisher) PublishNotification(_ context.Context, userID uint, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, userID)
	return nil
}

type fixture struct {
	db            *gorm.DB
	mail          *fakeMail
	publisher     *fakePublisher
	notifications *NotificationService
	users         *UserService
	societes      *SocieteService
	associes      *AssocieService
	gerants       *GerantService
	types         *TypePVService
	documents     *DocumentService
	stats         *StatsService
	now           time.Time
}

// newTestDB opens a private in-memory database for the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite("file:"+name+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.MigrateDB(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:        db,
		mail:      &fakeMail{},
		publisher: &fakePublisher{},
		now:       time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	accountCfg := config.AccountConfig{
		VerificationTTL:       48 * time.Hour,
		UnverifiedRetention:   7 * 24 * time.Hour,
		NotificationRetention: 30 * 24 * time.Hour,
		CleanupCron:           "0 3 * * *",
		PublicBaseURL:         "https://app.fiduciaire.ma/",
	}
	f.notifications = NewNotificationService(db, f.publisher)
	f.users = NewUserService(db, f.mail, f.notifications, accountCfg)
	f.users.now = func() time.Time { return f.now }
	f.societes = NewSocieteService(db, f.notifications)
	f.associes = NewAssocieService(db, f.societes)
	f.gerants = NewGerantService(db, f.societes)
	f.types = NewTypePVService(db)
	f.documents = NewDocumentService(db, f.societes, f.notifications, config.PVConfig{
		FirmName: "Cabinet Test",
		City:     "Rabat",
	})
	f.documents.now = func() time.Time { return f.now }
	f.stats = NewStatsService(db, f.users, f.societes, f.documents)
	return f
}

// user inserts an account directly in the given state.
func (f *fixture) user(t *testing.T, email, role, status string) *models.User {
	t.Helper()
	u := &models.User{
		Email:  email,
		Nom:    "Test",
		Prenom: strings.Split(email, "@")[0],
		Role:   role,
		Status: status,
	}
	require.NoError(t, u.SetPassword(testPassword))
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) admin(t *testing.T) *models.User {
	return f.user(t, "admin@fiduciaire.ma", models.RoleAdmin, models.UserStatusApproved)
}

func (f *fixture) comptable(t *testing.T, email string) *models.User {
	return f.user(t, email, models.RoleComptable, models.UserStatusApproved)
}

func atlasInput() SocieteInput {
	return SocieteInput{
		RaisonSociale:     "Atlas & Fils",
		FormeJuridique:    "sarl",
		Capital:           money.Dirhams(100000),
		NombreParts:       1000,
		SiegeSocial:       "12 rue Ibn Battouta",
		Ville:             "Casablanca",
		RC:                "123456",
		ICE:               "001234567000089",
		IdentifiantFiscal: "12345678",
		Email:             "contact@atlas.ma",
	}
}

// societe creates Atlas & Fils owned by owner, with two associés and a gérant.
func (f *fixture) societe(t *testing.T, owner *models.User) *models.Societe {
	t.Helper()
	so, err := f.societes.Create(context.Background(), owner, atlasInput())
	require.NoError(t, err)
	_, err = f.associes.Create(owner, so.ID, AssocieInput{Nom: "Alaoui", Prenom: "Karim", CIN: "BK123456", NombreParts: 600})
	require.NoError(t, err)
	_, err = f.associes.Create(owner, so.ID, AssocieInput{Nom: "Bennani", Prenom: "Salma", CIN: "BE654321", NombreParts: 400})
	require.NoError(t, err)
	_, err = f.gerants.Create(owner, so.ID, GerantInput{Nom: "Alaoui", Prenom: "Karim", CIN: "bk 123456"})
	require.NoError(t, err)
	return so
}

// typeByCode seeds the built-in types and returns one of them.
func (f *fixture) typeByCode(t *testing.T, code string) *models.TypePV {
	t.Helper()
	_, err := f.types.SeedBuiltinTypes()
	require.NoError(t, err)
	var tp models.TypePV
	require.NoError(t, f.db.Where("code = ?", code).First(&tp).Error)
	return &tp
}

func (f *fixture) unread(t *testing.T, userID uint) int64 {
	t.Helper()
	n, err := f.notifications.UnreadCount(userID)
	require.NoError(t, err)
	return n
}
