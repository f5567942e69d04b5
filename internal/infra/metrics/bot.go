package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(botCommandsTotal)
}

var botCommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Telegram bot commands by command and authorization result.",
	},
	[]string{"command", "result"},
)

func IncBotCommand(command, result string) {
	botCommandsTotal.WithLabelValues(norm(command), norm(result)).Inc()
}
