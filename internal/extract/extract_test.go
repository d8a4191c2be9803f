package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const teamListPage = `
<html><body>
<table class="team-list">
  <tbody>
    <tr><td><a href="/teams/lakers">Los Angeles Lakers</a></td><td>82</td></tr>
    <tr><td><a href="/teams/celtics">Boston Celtics</a></td><td>81</td></tr>
    <tr><td><a href="/teams/lakers">Los Angeles Lakers</a></td><td>82</td></tr>
    <tr><td><a href=""></a></td><td>0</td></tr>
  </tbody>
</table>
</body></html>`

func TestTeamListExtractDedupesByHref(t *testing.T) {
	refs, err := TeamListExtractor{}.Extract([]byte(teamListPage))
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, TeamRef{Name: "Los Angeles Lakers", Href: "/teams/lakers"}, refs[0])
	assert.Equal(t, TeamRef{Name: "Boston Celtics", Href: "/teams/celtics"}, refs[1])
}

func TestTeamListExtractLayoutMismatch(t *testing.T) {
	_, err := TeamListExtractor{}.Extract([]byte(`<html><body><p>checking your browser</p></body></html>`))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

const rosterPage = `
<html><body>
<table class="roster">
  <tbody>
    <tr><td><a href="/players/lebron-james">LeBron James</a></td><td><span>96</span></td></tr>
    <tr><td><a href="/players/anthony-davis">Anthony Davis</a></td><td>94</td></tr>
    <tr><td><a href="/players/nameless"></a></td><td>90</td></tr>
    <tr><td><a href="/players/no-rating">Bench Guy</a></td><td></td></tr>
    <tr><td>Two Way Player</td><td>74</td></tr>
  </tbody>
</table>
</body></html>`

func TestRosterExtractSkipsIncompleteRows(t *testing.T) {
	entries, err := RosterExtractor{}.Extract([]byte(rosterPage))
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, RosterEntry{Name: "LeBron James", Overall: 96, DetailHref: "/players/lebron-james"}, entries[0])
	assert.Equal(t, RosterEntry{Name: "Anthony Davis", Overall: 94, DetailHref: "/players/anthony-davis"}, entries[1])
	// Rows without a detail link still count when name and rating are present.
	assert.Equal(t, RosterEntry{Name: "Two Way Player", Overall: 74}, entries[2])
}

func TestRosterExtractPreservesSourceOrder(t *testing.T) {
	entries, err := RosterExtractor{}.Extract([]byte(rosterPage))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"LeBron James", "Anthony Davis", "Two Way Player"}, names)
}

const playerDetailPage = `
<html><body>
<h1>LeBron James</h1>
<div class="player-position">SF</div>
<div class="player-height">6'9"</div>
<ul class="attributes">
  <li><span class="name">Three-Point Shot</span><span class="value">73</span></li>
  <li><span class="name">Driving Dunk</span><span class="value">92</span></li>
  <li>Perimeter Defense 85</li>
  <li>Unratable</li>
</ul>
</body></html>`

func TestPlayerDetailExtract(t *testing.T) {
	detail, err := PlayerDetailExtractor{}.Extract([]byte(playerDetailPage))
	require.NoError(t, err)

	assert.Equal(t, "SF", detail.Position)
	assert.Equal(t, `6'9"`, detail.Height)
	assert.Equal(t, map[string]int{
		"threepoint_shot":   73,
		"driving_dunk":      92,
		"perimeter_defense": 85,
	}, detail.Attributes)
}

func TestPlayerDetailLayoutMismatch(t *testing.T) {
	_, err := PlayerDetailExtractor{}.Extract([]byte(`<html><body><div>moved</div></body></html>`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayoutMismatch))
}
