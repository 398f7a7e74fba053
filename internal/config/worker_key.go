package config

type WorkerKeyStruct struct {
	PersistAuditLogQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAuditLogQueue: "persist_audit_log_queue",
}
