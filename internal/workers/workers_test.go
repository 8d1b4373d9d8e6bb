package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecheckPacketValidate(t *testing.T) {
	packet := recheckPacket{LinkFullname: "t3_abc", CommentFullname: "t1_def"}
	assert.Empty(t, packet.validate())

	assert.Len(t, recheckPacket{CommentFullname: "t1_def"}.validate(), 1)
	assert.Len(t, recheckPacket{}.validate(), 2)
}

func TestYearMonthQuarter(t *testing.T) {
	assert.Equal(t, "2020Q1", yearMonth{2020, 1}.quarter())
	assert.Equal(t, "2020Q1", yearMonth{2020, 3}.quarter())
	assert.Equal(t, "2020Q2", yearMonth{2020, 4}.quarter())
	assert.Equal(t, "2021Q4", yearMonth{2021, 12}.quarter())
}

func TestBuildQuarterlyPlotFoldsMonths(t *testing.T) {
	worker := &LoansStatsWorker{}
	categories := []yearMonth{
		{2020, 1}, {2020, 2}, {2020, 3}, {2020, 4},
	}
	monthly := &statsPlot{
		Data: statsPlotData{
			Series: []statsSeries{
				{Name: "lent", Data: []float64{1, 2, 3, 4}},
			},
		},
	}

	quarterly := worker.buildQuarterlyPlot("count", monthly, categories, 0)

	assert.Equal(t, []string{"2020Q1", "2020Q2"}, quarterly.Data.Categories)
	require.Len(t, quarterly.Data.Series, 1)
	assert.Equal(t, []float64{6, 4}, quarterly.Data.Series[0].Data)
}

func TestProducerActions(t *testing.T) {
	for _, action := range []string{
		"banuser", "unbanuser", "acceptmoderatorinvite",
		"removemoderator", "addcontributor", "removecontributor",
	} {
		assert.True(t, producerActions[action], action)
	}
	assert.False(t, producerActions["wikirevise"])
}
