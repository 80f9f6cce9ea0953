package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnforceCitationsNormalizesLoosePhrasings(t *testing.T) {
	allow := []string{"S1", "S2", "S3"}

	out, n := EnforceCitations("Planen vann laga kraft 2021 [Källa: plan.pdf, S2].", allow, true)
	assert.Equal(t, "Planen vann laga kraft 2021 [S2].", out)
	assert.Equal(t, 1, n)

	out, n = EnforceCitations("Bullernivån är 55 dBA (S1, S3).", allow, true)
	assert.Equal(t, "Bullernivån är 55 dBA [S1][S3].", out)
	assert.Equal(t, 2, n)

	out, n = EnforceCitations("Detta framgår av S2 i underlaget.", allow, true)
	assert.Equal(t, "Detta framgår av [S2] i underlaget.", out)
	assert.Equal(t, 1, n)
}

func TestEnforceCitationsKeepsCanonicalForm(t *testing.T) {
	allow := []string{"S1", "S4"}
	out, n := EnforceCitations("Två skäl talar för detta [S1][S4].", allow, true)
	assert.Equal(t, "Två skäl talar för detta [S1][S4].", out)
	assert.Equal(t, 2, n)
}

func TestEnforceCitationsDropsUnknownTokens(t *testing.T) {
	allow := []string{"S1"}
	out, n := EnforceCitations("Ett stött påstående [S1] och ett påhittat [S9].", allow, true)
	assert.Equal(t, "Ett stött påstående [S1] och ett påhittat.", out)
	assert.Equal(t, 1, n)
}

func TestEnforceCitationsDropsManyDigitTokens(t *testing.T) {
	// Fabricated tokens are filtered no matter how many digits they carry.
	allow := []string{"S1"}
	out, n := EnforceCitations("Stött [S1]. Påhittat [S1234].", allow, true)
	assert.Equal(t, "Stött [S1]. Påhittat.", out)
	assert.Equal(t, 1, n)

	out, n = EnforceCitations("Bara påhitt [S1234] och S98765 här.", allow, true)
	assert.Equal(t, RefusalAnswer, out)
	assert.Zero(t, n)
}

func TestEnforceCitationsRefusesWhenNothingSurvives(t *testing.T) {
	allow := []string{"S1", "S2"}
	out, n := EnforceCitations("Allt detta är känt sedan länge [S7].", allow, true)
	assert.Equal(t, RefusalAnswer, out)
	assert.Zero(t, n)
}

func TestEnforceCitationsNoRefusalWithEmptyAllowList(t *testing.T) {
	out, n := EnforceCitations("Ett svar utan källor.", nil, true)
	assert.Equal(t, "Ett svar utan källor.", out)
	assert.Zero(t, n)
}

func TestEnforceCitationsDisabledStripsTokens(t *testing.T) {
	out, n := EnforceCitations("Svar med hänvisning [S1] kvar.", []string{"S1"}, false)
	assert.Equal(t, "Svar med hänvisning kvar.", out)
	assert.Zero(t, n)
}

func TestEnforceCitationsDeduplicatesWithinGroup(t *testing.T) {
	out, n := EnforceCitations("Dubbelt [Källa: a.pdf, S1, S1].", []string{"S1"}, true)
	assert.Equal(t, "Dubbelt [S1].", out)
	assert.Equal(t, 1, n)
}
