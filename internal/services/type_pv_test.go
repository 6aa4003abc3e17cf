package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/internal/pv"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedBuiltinTypesIsIdempotent(t *testing.T) {
	f := newFixture(t)

	n, err := f.types.SeedBuiltinTypes()
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinTypes()), n)

	n, err = f.types.SeedBuiltinTypes()
	require.NoError(t, err)
	assert.Zero(t, n)

	types, err := f.types.List(true)
	require.NoError(t, err)
	require.Len(t, types, 4)

	variants := map[string]pv.Variant{}
	for _, tp := range types {
		variants[tp.Code] = pv.SelectVariant(tp.Nom)
	}
	assert.Equal(t, pv.VariantReport, variants["AGO_REPORT"])
	assert.Equal(t, pv.VariantDividendes, variants["AGO_DIVIDENDES"])
	assert.Equal(t, pv.VariantDeficit, variants["AGO_DEFICIT"])
	assert.Equal(t, pv.VariantContinuite, variants["AGE_CONTINUITE"])
}

func TestTypePVCustomTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.types.Create(TypePVInput{Code: "x", Nom: "Essai", Template: "<p>{{INCONNU}}</p>"})
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	tp, err := f.types.Create(TypePVInput{Code: " pv_simple ", Nom: "PV simple", Template: "<p>{{RAISON_SOCIALE}} - {{EXERCICE}}</p>"})
	require.NoError(t, err)
	assert.Equal(t, "PV_SIMPLE", tp.Code)
	assert.Equal(t, 1, tp.TemplateVersion)

	_, err = f.types.Create(TypePVInput{Code: "PV_SIMPLE", Nom: "Doublon"})
	assert.True(t, stderrors.Is(err, errors.ErrConflict))

	detail, err := f.types.Detail(tp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"RAISON_SOCIALE", "EXERCICE"}, detail.Tokens)
	assert.Equal(t, string(pv.VariantReport), detail.Variant)

	same, err := f.types.Update(tp.ID, TypePVInput{Nom: "PV simple", Template: tp.Template})
	require.NoError(t, err)
	assert.Equal(t, 1, same.TemplateVersion)

	changed, err := f.types.Update(tp.ID, TypePVInput{Nom: "PV simple", Template: "<p>{{RAISON_SOCIALE}}</p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, changed.TemplateVersion)

	tpl, err := ResolveTemplate(changed)
	require.NoError(t, err)
	assert.Equal(t, "custom:PV_SIMPLE@v2", tpl.Version)

	inactive := false
	hidden, err := f.types.Create(TypePVInput{Code: "CACHE", Nom: "Caché", Active: &inactive})
	require.NoError(t, err)
	assert.False(t, hidden.Active)
	active, err := f.types.List(true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestDeleteTypePVInUseDeactivates(t *testing.T) {
	f := newFixture(t)
	owner := f.comptable(t, "owner@b.ma")
	so := f.societe(t, owner)
	tp := f.typeByCode(t, "AGO_REPORT")

	unused := f.typeByCode(t, "AGO_DEFICIT")
	deactivated, err := f.types.Delete(unused.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	_, err = f.types.GetByID(unused.ID)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	_, err = f.documents.Generate(context.Background(), owner, GenerateRequest{
		SocieteID:     so.ID,
		TypePVID:      tp.ID,
		Exercice:      2025,
		DateAssemblee: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
		ResultatNet:   money.Dirhams(10000),
	})
	require.NoError(t, err)

	deactivated, err = f.types.Delete(tp.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	kept, err := f.types.GetByID(tp.ID)
	require.NoError(t, err)
	assert.False(t, kept.Active)

	var docs int64
	require.NoError(t, f.db.Model(&models.Document{}).Where("type_pv_id = ?", tp.ID).Count(&docs).Error)
	assert.Equal(t, int64(1), docs)
}
