package postgresql

// migrations returns the ordered schema migrations for PostgreSQL.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT FALSE,
				version INTEGER NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				trigger_config JSONB,
				graph_config JSONB NOT NULL DEFAULT '{}',
				variables JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner);
			CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				owner TEXT NOT NULL,
				status TEXT NOT NULL,
				trigger_data JSONB NOT NULL DEFAULT '{}',
				execution_state JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions(status);
			CREATE INDEX IF NOT EXISTS idx_executions_owner_status ON workflow_executions(owner, status);
			CREATE INDEX IF NOT EXISTS idx_executions_idempotency
				ON workflow_executions((trigger_data->>'idempotency_key'))
				WHERE trigger_data->>'idempotency_key' IS NOT NULL;
		`,
		3: `
			CREATE TABLE IF NOT EXISTS workflow_schedules (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				cron_expression TEXT NOT NULL,
				next_run_at TIMESTAMP WITH TIME ZONE NOT NULL,
				last_run_at TIMESTAMP WITH TIME ZONE,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_schedules_due ON workflow_schedules(next_run_at) WHERE active;
		`,
		4: `
			CREATE TABLE IF NOT EXISTS workflow_signals (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
				signal_type TEXT NOT NULL,
				signal_data JSONB,
				received_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				processed BOOLEAN NOT NULL DEFAULT FALSE
			);

			CREATE INDEX IF NOT EXISTS idx_signals_pending ON workflow_signals(execution_id, received_at) WHERE NOT processed;
		`,
		5: `
			CREATE TABLE IF NOT EXISTS webhook_subscriptions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				webhook_path TEXT NOT NULL UNIQUE,
				secret TEXT NOT NULL DEFAULT '',
				headers JSONB,
				filters JSONB,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
