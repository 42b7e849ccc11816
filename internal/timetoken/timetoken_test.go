package timetoken

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
    cases := []struct {
        name string
        in   string
        want float64
    }{
        {"empty", "", 0},
        {"no token", "worked on the login page all day", 0},
        {"simple", "Time: 2.5", 2.5},
        {"double colon", "Time:: 1", 1},
        {"mixed colons summed", "Time: 2.5 Time:: 1", 3.5},
        {"lowercase no space", "time:3", 3},
        {"uppercase", "TIME: 4", 4},
        {"inside markup", "<p>Fixed the bug.<br>Time: 1.25</p>", 1.25},
        {"multiple comments worth", "Time: 2 then later Time::: 0.5", 2.5},
        {"number without token ignored", "spent 3 hours", 0},
        {"negative sign not matched", "Time: -2", 0},
        {"trailing text", "Time: 2.5h of review", 2.5},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, Extract(tc.in))
        })
    }
}

func TestExtractIsPure(t *testing.T) {
    in := "Time: 2.5 Time:: 1"
    assert.Equal(t, Extract(in), Extract(in))
}

func TestStripTags(t *testing.T) {
    assert.Equal(t, "Fixed login. Time: 2", StripTags("<p>Fixed login. <b>Time: 2</b></p>"))
    assert.Equal(t, "a < b", StripTags("a &lt; b"))
    assert.Equal(t, "plain", StripTags("plain"))
}
