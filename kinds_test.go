package bugsnag_notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindEnabled(t *testing.T) {
	assert.True(t, KindAll.Enabled(KindNotice))
	assert.True(t, (KindError | KindWarning).Enabled(KindWarning))
	assert.False(t, (KindAll &^ KindNotice).Enabled(KindNotice))
	assert.False(t, ErrorKind(0).Enabled(KindWarning))
	assert.False(t, KindAll.Enabled(0))
}

func TestErrorKindSeverity(t *testing.T) {
	tests := map[ErrorKind]Severity{
		KindFatal:      SeverityError,
		KindError:      SeverityError,
		KindWarning:    SeverityWarning,
		KindNotice:     SeverityInfo,
		KindDeprecated: SeverityInfo,
	}

	for kind, severity := range tests {
		assert.Equal(t, severity, kind.Severity(), kind.String())
	}

	assert.True(t, KindFatal.IsFatal())
	assert.False(t, KindError.IsFatal())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "none", ErrorKind(0).String())
	assert.Equal(t, "warning", KindWarning.String())
	assert.Equal(t, "error|notice", (KindError | KindNotice).String())
	assert.Equal(t, "fatal|error|warning|notice|deprecated", KindAll.String())
}

func TestParseErrorKinds(t *testing.T) {
	kinds, err := ParseErrorKinds(nil)
	require.NoError(t, err)
	assert.Equal(t, KindAll, kinds)

	kinds, err = ParseErrorKinds([]string{"Error", " warning "})
	require.NoError(t, err)
	assert.Equal(t, KindError|KindWarning, kinds)

	kinds, err = ParseErrorKinds([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, KindAll, kinds)

	_, err = ParseErrorKinds([]string{"error", "strict"})
	assert.Error(t, err)
}
