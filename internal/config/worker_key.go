package config

type WorkerKeyStruct struct {
	SessionOutcomesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	SessionOutcomesQueue: "session_outcomes_queue",
}
