package services

import (
	"fiduciaire/internal/models"

	"gorm.io/gorm"
)

// StatsService dashboard figures
type StatsService struct {
	db        *gorm.DB
	users     *UserService
	societes  *SocieteService
	documents *DocumentService
}

// Dashboard figures scoped to what the actor can see
type Dashboard struct {
	Societes          int64            `json:"societes"`
	SocietesParForme  map[string]int64 `json:"societes_par_forme"`
	Associes          int64            `json:"associes"`
	Gerants           int64            `json:"gerants"`
	Documents         int64            `json:"documents"`
	DocumentsParAnnee map[int]int64    `json:"documents_par_exercice"`
	PendingApprovals  int              `json:"pending_approvals"`
	UnreadNotifs      int64            `json:"unread_notifications"`
	Users             *UserStats       `json:"users,omitempty"`
}

func NewStatsService(db *gorm.DB, users *UserService, societes *SocieteService, documents *DocumentService) *StatsService {
	return &StatsService{
		db:        db,
		users:     users,
		societes:  societes,
		documents: documents,
	}
}

// Dashboard computes the home screen figures for actor.
func (s *StatsService) Dashboard(actor *models.User) (*Dashboard, error) {
	d := &Dashboard{SocietesParForme: map[string]int64{}}

	scoped := func(model interface{}, column string) *gorm.DB {
		q := s.db.Model(model)
		if sub := s.societes.accessibleIDs(actor); sub != nil {
			q = q.Where(column+" IN (?)", sub)
		}
		return q
	}

	if err := scoped(&models.Societe{}, "id").Count(&d.Societes).Error; err != nil {
		return nil, err
	}
	var formes []struct {
		FormeJuridique string
		Count          int64
	}
	err := scoped(&models.Societe{}, "id").
		Select("forme_juridique, COUNT(*) as count").
		Group("forme_juridique").
		Scan(&formes).Error
	if err != nil {
		return nil, err
	}
	for _, f := range formes {
		d.SocietesParForme[f.FormeJuridique] = f.Count
	}

	if err := scoped(&models.Associe{}, "societe_id").Count(&d.Associes).Error; err != nil {
		return nil, err
	}
	if err := scoped(&models.Gerant{}, "societe_id").Where("active = ?", true).Count(&d.Gerants).Error; err != nil {
		return nil, err
	}
	if err := scoped(&models.Document{}, "societe_id").Count(&d.Documents).Error; err != nil {
		return nil, err
	}
	if d.DocumentsParAnnee, err = s.documents.CountByExercice(actor); err != nil {
		return nil, err
	}

	pending, err := s.users.PendingFor(actor)
	if err != nil {
		return nil, err
	}
	d.PendingApprovals = len(pending)

	if d.UnreadNotifs, err = s.users.notifications.UnreadCount(actor.ID); err != nil {
		return nil, err
	}

	if actor.IsAdmin() {
		if d.Users, err = s.users.GetStats(); err != nil {
			return nil, err
		}
	}
	return d, nil
}
