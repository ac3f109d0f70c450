package harness

import (
	"flag"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir holds golden renderings, relative to the test's package.
const GoldenDir = "testdata/golden"

// Golden expects the rendering stored in testdata/golden/<name>.golden. When
// tests run with -update, the file is rewritten with whatever was rendered.
func Golden(t *testing.T, name string) Expectation {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	return ExpectFunc(func(got string) error {
		if updating() {
			return g.Update(t, name, []byte(got))
		}
		want, err := os.ReadFile(g.GoldenFileName(t, name))
		if err != nil {
			return err
		}
		return Expect(want).Check(got)
	})
}

func updating() bool {
	f := flag.Lookup("update")
	if f == nil {
		return false
	}
	return f.Value.String() == "true"
}
