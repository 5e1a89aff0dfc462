package rbac

// Platform permissions.
const (
	PermSystemFull Permission = "system:full"

	PermDashboardView Permission = "dashboard:view"

	PermChatView   Permission = "chat:view"
	PermChatManage Permission = "chat:manage"

	PermContactsView   Permission = "contacts:view"
	PermContactsManage Permission = "contacts:manage"

	PermTicketsView   Permission = "tickets:view"
	PermTicketsManage Permission = "tickets:manage"

	PermReportsView   Permission = "reports:view"
	PermReportsExport Permission = "reports:export"

	PermBillingView   Permission = "billing:view"
	PermBillingManage Permission = "billing:manage"

	PermUsersView   Permission = "users:view"
	PermUsersManage Permission = "users:manage"

	PermSettingsView   Permission = "settings:view"
	PermSettingsManage Permission = "settings:manage"

	PermWhatsAppManage Permission = "whatsapp:manage"
	PermAIManage       Permission = "ai:manage"

	PermTenantsView   Permission = "tenants:view"
	PermTenantsManage Permission = "tenants:manage"
)

func viewerScopes() []Permission {
	return []Permission{
		PermDashboardView,
		PermChatView,
		PermContactsView,
		PermReportsView,
	}
}

func operatorScopes() []Permission {
	return append(viewerScopes(),
		PermChatManage,
		PermContactsManage,
		PermTicketsView,
		PermTicketsManage,
	)
}

func adminScopes() []Permission {
	return append(operatorScopes(),
		PermBillingView,
		PermBillingManage,
		PermUsersView,
		PermUsersManage,
		PermSettingsView,
		PermSettingsManage,
		PermWhatsAppManage,
		PermAIManage,
		PermReportsExport,
	)
}

func superAdminScopes() []Permission {
	return append(adminScopes(),
		PermTenantsView,
		PermTenantsManage,
		PermSystemFull,
	)
}

// DefaultDefinition is the shipped role to permission mapping.
func DefaultDefinition() map[Role][]Permission {
	return map[Role][]Permission{
		RoleSuperAdmin: superAdminScopes(),
		RoleAdmin:      adminScopes(),
		RoleOperator:   operatorScopes(),
		RoleViewer:     viewerScopes(),
	}
}
