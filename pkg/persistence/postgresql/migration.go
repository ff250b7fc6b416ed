package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE onboarding_progress (
				tenant_id VARCHAR(128) PRIMARY KEY,
				current_step INT NOT NULL DEFAULT 1 CHECK (current_step >= 1),
				status VARCHAR(50) NOT NULL DEFAULT 'not_started',
				completed_steps INT NOT NULL DEFAULT 0 CHECK (completed_steps >= 0),
				saved_data JSONB NOT NULL DEFAULT '{}',
				onboarding_completed BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_onboarding_progress_status ON onboarding_progress(status);
		`,
		2: `
			CREATE INDEX idx_onboarding_progress_status_updated_at
				ON onboarding_progress(status, updated_at);
		`,
	}
}
