package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContextStringHeaderFormat(t *testing.T) {
	c := Context{
		Time:    time.Date(2026, time.March, 2, 15, 4, 0, 0, time.UTC),
		Author:  "Alex",
		Content: "opened the editor and started writing",
	}

	s := c.String()
	require.True(t, strings.HasPrefix(s, "All of this work was done on Monday March 2nd 3:04PM by Alex:\n\n"))
	require.True(t, strings.HasSuffix(s, "opened the editor and started writing"))
}

func TestOrdinalDaySuffixes(t *testing.T) {
	cases := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd"}
	for day, want := range cases {
		require.Equal(t, want, ordinalDay(day))
	}
}
