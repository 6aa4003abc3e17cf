package services

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSocieteMakesCreatorOwner(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	owner := f.comptable(t, "owner@b.ma")
	stranger := f.comptable(t, "other@b.ma")

	so, err := f.societes.Create(context.Background(), owner, atlasInput())
	require.NoError(t, err)
	assert.Equal(t, "SARL", so.FormeJuridique)
	assert.Equal(t, owner.ID, so.CreatedBy)

	access, err := f.societes.AccessOf(owner, so.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOwner, access)

	access, err = f.societes.AccessOf(admin, so.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOwner, access)

	_, _, err = f.societes.Get(stranger, so.ID)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound), "hidden sociétés look missing")

	_, err = f.societes.AccessOf(owner, 999)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestSocieteValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.comptable(t, "owner@b.ma")

	cases := map[string]func(*SocieteInput){
		"no name":     func(in *SocieteInput) { in.RaisonSociale = " " },
		"bad forme":   func(in *SocieteInput) { in.FormeJuridique = "GIE" },
		"no capital":  func(in *SocieteInput) { in.Capital = 0 },
		"no parts":    func(in *SocieteInput) { in.NombreParts = 0 },
		"short ICE":   func(in *SocieteInput) { in.ICE = "12345" },
		"alpha ICE":   func(in *SocieteInput) { in.ICE = "00123456700008A" },
		"long IF":     func(in *SocieteInput) { in.IdentifiantFiscal = "12345678901" },
		"bad e-mail":  func(in *SocieteInput) { in.Email = "contact@" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := atlasInput()
			mutate(&in)
			_, err := f.societes.Create(context.Background(), owner, in)
			assert.True(t, stderrors.Is(err, errors.ErrValidation), "got %v", err)
		})
	}
}

func TestSocieteIdentifiersAreUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.comptable(t, "owner@b.ma")

	_, err := f.societes.Create(ctx, owner, atlasInput())
	require.NoError(t, err)

	dup := atlasInput()
	dup.RaisonSociale = "Autre"
	dup.IdentifiantFiscal = ""
	_, err = f.societes.Create(ctx, owner, dup)
	assert.True(t, stderrors.Is(err, errors.ErrConflict))

	dup.ICE = ""
	dup.IdentifiantFiscal = "12345678"
	_, err = f.societes.Create(ctx, owner, dup)
	assert.True(t, stderrors.Is(err, errors.ErrConflict))

	// identifiers are optional; blanks never collide
	for _, name := range []string{"Sans ICE 1", "Sans ICE 2"} {
		in := atlasInput()
		in.RaisonSociale = name
		in.ICE, in.IdentifiantFiscal = "", ""
		_, err := f.societes.Create(ctx, owner, in)
		require.NoError(t, err)
	}
}

func TestShareAndUnshare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.comptable(t, "owner@b.ma")
	assistant := f.user(t, "assist@b.ma", models.RoleAssistant, models.UserStatusApproved)
	pending := f.user(t, "pending@b.ma", models.RoleAssistant, models.UserStatusPendingApproval)
	so := f.societe(t, owner)

	_, err := f.societes.Share(ctx, owner, so.ID, pending.ID, models.AccessViewer)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
	_, err = f.societes.Share(ctx, owner, so.ID, assistant.ID, "ROOT")
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	link, err := f.societes.Share(ctx, owner, so.ID, assistant.ID, models.AccessViewer)
	require.NoError(t, err)
	assert.Equal(t, models.AccessViewer, link.Access)
	assert.Equal(t, int64(1), f.unread(t, assistant.ID))

	got, access, err := f.societes.Get(assistant, so.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessViewer, access)
	require.Len(t, got.Associes, 2)
	assert.InDelta(t, 60.0, got.Associes[0].Pourcentage, 0.001)

	_, err = f.societes.Update(ctx, assistant, so.ID, atlasInput())
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))
	_, err = f.societes.Share(ctx, assistant, so.ID, assistant.ID, models.AccessOwner)
	assert.True(t, stderrors.Is(err, errors.ErrForbidden))

	_, err = f.societes.Share(ctx, owner, so.ID, assistant.ID, models.AccessEditor)
	require.NoError(t, err)
	_, err = f.societes.Update(ctx, assistant, so.ID, atlasInput())
	require.NoError(t, err)

	members, err := f.societes.ListMembers(assistant, so.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	err = f.societes.Unshare(owner, so.ID, owner.ID)
	assert.True(t, stderrors.Is(err, errors.ErrValidation), "last owner stays")
	_, err = f.societes.Share(ctx, owner, so.ID, owner.ID, models.AccessViewer)
	assert.True(t, stderrors.Is(err, errors.ErrValidation), "last owner cannot downgrade")

	require.NoError(t, f.societes.Unshare(owner, so.ID, assistant.ID))
	_, err = f.societes.AccessOf(assistant, so.ID)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	assert.True(t, stderrors.Is(f.societes.Unshare(owner, so.ID, assistant.ID), errors.ErrNotFound))
}

func TestUpdateSocieteKeepsHeldParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.comptable(t, "owner@b.ma")
	so := f.societe(t, owner)

	in := atlasInput()
	in.NombreParts = 900
	_, err := f.societes.Update(ctx, owner, so.ID, in)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	in = atlasInput()
	in.FormeJuridique = models.FormeSARLAU
	_, err = f.societes.Update(ctx, owner, so.ID, in)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	in = atlasInput()
	in.Capital = money.Dirhams(200000)
	in.NombreParts = 2000
	updated, err := f.societes.Update(ctx, owner, so.ID, in)
	require.NoError(t, err)
	assert.Equal(t, money.Dirhams(200000), updated.Capital)
}

func TestDeleteSocieteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.comptable(t, "owner@b.ma")
	editor := f.comptable(t, "editor@b.ma")
	so := f.societe(t, owner)
	_, err := f.societes.Share(ctx, owner, so.ID, editor.ID, models.AccessEditor)
	require.NoError(t, err)

	assert.True(t, stderrors.Is(f.societes.Delete(ctx, editor, so.ID), errors.ErrForbidden))
	require.NoError(t, f.societes.Delete(ctx, owner, so.ID))

	for _, model := range []interface{}{&models.Associe{}, &models.Gerant{}, &models.SocieteUser{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Where("societe_id = ?", so.ID).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
	_, err = f.societes.AccessOf(owner, so.ID)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	// the ICE is free again once the société is gone
	_, err = f.societes.Create(ctx, owner, atlasInput())
	assert.NoError(t, err)
}

func TestListSocietesIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.comptable(t, "a@b.ma")
	b := f.comptable(t, "b@b.ma")

	f.societe(t, a)
	in := atlasInput()
	in.RaisonSociale, in.ICE, in.IdentifiantFiscal = "Rif Négoce", "", ""
	in.FormeJuridique, in.Ville = "SA", "Tanger"
	_, err := f.societes.Create(ctx, b, in)
	require.NoError(t, err)

	list, total, err := f.societes.GetWithFiltersAndPage(a, SocieteFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Atlas & Fils", list[0].RaisonSociale)

	_, total, err = f.societes.GetWithFiltersAndPage(admin, SocieteFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	list, total, err = f.societes.GetWithFiltersAndPage(admin, SocieteFilter{Ville: "tanger"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Rif Négoce", list[0].RaisonSociale)

	_, total, err = f.societes.GetWithFiltersAndPage(admin, SocieteFilter{Keyword: "0012345"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = f.societes.GetWithFiltersAndPage(admin, SocieteFilter{FormeJuridique: "SARL"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	owner := f.comptable(t, "owner@b.ma")
	f.societe(t, owner)

	var buf bytes.Buffer
	require.NoError(t, f.societes.ExportCSV(owner, SocieteFilter{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "raison_sociale;forme_juridique;capital"))
	assert.True(t, strings.HasPrefix(lines[1], "Atlas & Fils;SARL;100000.00;1000;"), lines[1])
	assert.Contains(t, lines[1], "001234567000089")
}
