package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workspaces (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				working_directory TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workspace_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'paused', 'completed', 'failed', 'cancelled')),
				start_time TIMESTAMP WITH TIME ZONE NOT NULL,
				end_time TIMESTAMP WITH TIME ZONE,
				description TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_workspace_id ON runs(workspace_id);
			CREATE INDEX idx_runs_start_time ON runs(start_time);
		`,
		2: `
			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workspace_id VARCHAR(255) NOT NULL,
				cron_expression VARCHAR(255) NOT NULL,
				input_values JSONB NOT NULL DEFAULT '{}',
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_next_due_at ON schedules(next_due_at) WHERE active;
		`,
	}
}
