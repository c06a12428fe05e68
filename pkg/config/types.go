package config

type IngressSettings struct {
	Host string
	Port int
}

type GameSettings struct {
	MinPlayers         int
	CountdownSeconds   int
	ScoresSeconds      int
	WinThresholdMeters float64
	ElapsedTickMillis  int
}

type ResolverSettings struct {
	DelayMillis int
}

type ServerSettings struct {
	Ingress  IngressSettings
	Game     GameSettings
	Resolver ResolverSettings
}

type Config struct {
	Server ServerSettings
}
