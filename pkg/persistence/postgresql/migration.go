package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE audiences (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				property_definitions JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE contacts (
				id TEXT PRIMARY KEY,
				audience_id TEXT NOT NULL REFERENCES audiences(id) ON DELETE CASCADE,
				email VARCHAR(255) NOT NULL,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				last_tracked_activity_type VARCHAR(255) NOT NULL DEFAULT '',
				last_tracked_activity_value VARCHAR(255) NOT NULL DEFAULT '',
				last_tracked_activity_at TIMESTAMP WITH TIME ZONE,
				properties JSONB NOT NULL DEFAULT '{}',
				last_sent_broadcast_email_at TIMESTAMP WITH TIME ZONE,
				last_sent_automation_email_at TIMESTAMP WITH TIME ZONE,
				last_opened_broadcast_email_at TIMESTAMP WITH TIME ZONE,
				last_opened_automation_email_at TIMESTAMP WITH TIME ZONE,
				last_clicked_broadcast_email_link_at TIMESTAMP WITH TIME ZONE,
				last_clicked_automation_email_link_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (audience_id, email)
			);

			CREATE INDEX idx_contacts_audience_id ON contacts(audience_id);
			CREATE INDEX idx_contacts_properties ON contacts USING GIN (properties);

			CREATE TABLE tags (
				id TEXT PRIMARY KEY,
				audience_id TEXT NOT NULL REFERENCES audiences(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (audience_id, name)
			);

			CREATE TABLE contact_tags (
				contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (contact_id, tag_id)
			);

			CREATE INDEX idx_contact_tags_tag_id ON contact_tags(tag_id);

			CREATE TABLE automations (
				id TEXT PRIMARY KEY,
				audience_id TEXT NOT NULL REFERENCES audiences(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				trigger_filter JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_audience_id ON automations(audience_id);
			CREATE INDEX idx_automations_active ON automations(active);

			CREATE TABLE automation_steps (
				id TEXT PRIMARY KEY,
				automation_id TEXT NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				type VARCHAR(50) NOT NULL CHECK (type IN ('trigger', 'rule', 'action', 'end')),
				subtype VARCHAR(255) NOT NULL,
				configuration JSONB NOT NULL DEFAULT '{}',
				parent_id TEXT REFERENCES automation_steps(id) ON DELETE CASCADE,
				branch_index INT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_steps_automation_id ON automation_steps(automation_id);
			CREATE INDEX idx_automation_steps_parent_id ON automation_steps(parent_id);

			-- One occupant per (parent, branch) slot; -1 stands in for the
			-- branch-less slot.
			CREATE UNIQUE INDEX idx_automation_steps_slot
				ON automation_steps(parent_id, COALESCE(branch_index, -1))
				WHERE parent_id IS NOT NULL;

			-- Exactly one root (trigger) step per automation.
			CREATE UNIQUE INDEX idx_automation_steps_root
				ON automation_steps(automation_id)
				WHERE parent_id IS NULL;

			CREATE TABLE contact_automation_steps (
				contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				automation_step_id TEXT NOT NULL REFERENCES automation_steps(id) ON DELETE CASCADE,
				status VARCHAR(50) NOT NULL DEFAULT 'completed',
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (contact_id, automation_step_id)
			);

			CREATE TABLE email_templates (
				id TEXT PRIMARY KEY,
				audience_id TEXT NOT NULL REFERENCES audiences(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				html TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE sender_identities (
				id TEXT PRIMARY KEY,
				audience_id TEXT NOT NULL REFERENCES audiences(id) ON DELETE CASCADE,
				from_name VARCHAR(255) NOT NULL DEFAULT '',
				from_email VARCHAR(255) NOT NULL,
				sending_domain VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
