package prometheus

import (
	"github.com/avyn/avstream/ffmpeg"

	"github.com/prometheus/client_golang/prometheus"
)

type launcherCollector struct {
	name     string
	launcher ffmpeg.Launcher

	statesDesc  *prometheus.Desc
	versionDesc *prometheus.Desc
}

// NewLauncherCollector returns a collector of the cumulative process states
// of the launcher and the version of its ffmpeg.
func NewLauncherCollector(name string, l ffmpeg.Launcher) prometheus.Collector {
	return &launcherCollector{
		name:     name,
		launcher: l,
		statesDesc: prometheus.NewDesc(
			"avstream_process_states_total",
			"Number of ffmpeg and ffprobe processes that reached a state",
			[]string{"name", "state"}, nil),
		versionDesc: prometheus.NewDesc(
			"avstream_ffmpeg_info",
			"Version of the ffmpeg binary",
			[]string{"name", "version"}, nil),
	}
}

func (c *launcherCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.statesDesc
	ch <- c.versionDesc
}

func (c *launcherCollector) Collect(ch chan<- prometheus.Metric) {
	states := c.launcher.States()

	ch <- prometheus.MustNewConstMetric(c.statesDesc, prometheus.CounterValue, float64(states.Starting), c.name, "starting")
	ch <- prometheus.MustNewConstMetric(c.statesDesc, prometheus.CounterValue, float64(states.Running), c.name, "running")
	ch <- prometheus.MustNewConstMetric(c.statesDesc, prometheus.CounterValue, float64(states.Finished), c.name, "finished")
	ch <- prometheus.MustNewConstMetric(c.statesDesc, prometheus.CounterValue, float64(states.Failed), c.name, "failed")
	ch <- prometheus.MustNewConstMetric(c.statesDesc, prometheus.CounterValue, float64(states.Killed), c.name, "killed")

	ch <- prometheus.MustNewConstMetric(c.versionDesc, prometheus.GaugeValue, 1, c.name, c.launcher.Version().Version)
}
