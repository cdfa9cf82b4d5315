package fastenuri

import (
	"testing"

	"github.com/opencallgraph/merger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MethodURI(t *testing.T) {
	n, err := Parse("/java.util/ArrayList.add(%2Fjava.lang%2FObject)%2Fjava.lang%2Fboolean")
	require.NoError(t, err)
	assert.Equal(t, model.TypeURI("/java.util/ArrayList"), n.TypeURI)
	assert.Equal(t, model.Signature("add(%2Fjava.lang%2FObject)%2Fjava.lang%2Fboolean"), n.Signature)
}

func TestParse_Constructor(t *testing.T) {
	n, err := Parse("/java.util/ArrayList.<init>()%2Fjava.lang%2Fvoid")
	require.NoError(t, err)
	assert.True(t, n.IsConstructor())
}

func TestParse_BareType(t *testing.T) {
	n, err := Parse("/java.lang/Object")
	require.NoError(t, err)
	assert.Equal(t, model.TypeURI("/java.lang/Object"), n.TypeURI)
	assert.Equal(t, model.Signature(""), n.Signature)
}

func TestParse_MalformedMissingNamespace(t *testing.T) {
	_, err := Parse("noleadingslash")
	require.Error(t, err)
	var malformed *MalformedURIError
	require.ErrorAs(t, err, &malformed)
}

func TestParse_MalformedUnbalancedParens(t *testing.T) {
	_, err := Parse("/java.util/ArrayList.add(%2Fjava.lang%2FObject")
	require.Error(t, err)
}

func TestParse_MalformedNonHexEscape(t *testing.T) {
	_, err := Parse("/java.util/ArrayList.add(%ZZ)void")
	require.Error(t, err)
}

func TestParseBuildRoundTrip(t *testing.T) {
	typeURI := model.TypeURI("/java.util/ArrayList")
	sig := model.Signature("add(%2Fjava.lang%2FObject)%2Fjava.lang%2Fboolean")

	n, err := Parse(Build(typeURI, sig))
	require.NoError(t, err)
	assert.Equal(t, typeURI, n.TypeURI)
	assert.Equal(t, sig, n.Signature)
}

func TestDecanonicalize_StripsMatchingAuthority(t *testing.T) {
	raw := "//mvn!org.example$1.0/java.util/ArrayList.add(//mvn!org.example$1.0/java.lang/Object)//mvn!org.example$1.0/java.lang/boolean"
	out, err := Decanonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "/java.util/ArrayList.add(/java.lang/Object)/java.lang/boolean", out)
}

func TestDecanonicalize_LeavesDifferentAuthority(t *testing.T) {
	raw := "//mvn!org.example$1.0/java.util/ArrayList.add(//mvn!org.other$2.0/java.lang/Object)/java.lang/boolean"
	out, err := Decanonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "/java.util/ArrayList.add(//mvn!org.other$2.0/java.lang/Object)/java.lang/boolean", out)
}

func TestDecanonicalize_NoCrossAuthorityIsIdempotent(t *testing.T) {
	raw := "/java.util/ArrayList.add(/java.lang/Object)/java.lang/boolean"
	out, err := Decanonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestDecanonicalizeCanonicalizeRoundTrip(t *testing.T) {
	outer := Authority{Forge: "mvn", Product: "org.example", Version: "1.0"}
	u := "/java.util/ArrayList.add(/java.lang/Object)/java.lang/boolean"

	n, err := Parse(u)
	require.NoError(t, err)

	canonical, err := Canonicalize(n, outer)
	require.NoError(t, err)
	assert.Equal(t, "//mvn!org.example$1.0/java.util/ArrayList.add(//mvn!org.example$1.0/java.lang/Object)//mvn!org.example$1.0/java.lang/boolean", canonical)

	out, err := Decanonicalize(canonical)
	require.NoError(t, err)
	assert.Equal(t, u, out)
}

func TestCanonicalize_LeavesForeignAuthorityUntouched(t *testing.T) {
	outer := Authority{Forge: "mvn", Product: "org.example", Version: "1.0"}
	n := model.Node{
		TypeURI:   model.TypeURI("/java.util/ArrayList"),
		Signature: model.Signature("add(//mvn!org.other$2.0/java.lang/Object)/java.lang/boolean"),
	}

	canonical, err := Canonicalize(n, outer)
	require.NoError(t, err)
	assert.Equal(t, "//mvn!org.example$1.0/java.util/ArrayList.add(//mvn!org.other$2.0/java.lang/Object)//mvn!org.example$1.0/java.lang/boolean", canonical)
}

func TestCanonicalize_ZeroAuthorityLeavesURIBare(t *testing.T) {
	n := model.Node{TypeURI: model.TypeURI("/java.lang/Object")}
	canonical, err := Canonicalize(n, Authority{})
	require.NoError(t, err)
	assert.Equal(t, "/java.lang/Object", canonical)
}
