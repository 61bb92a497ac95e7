package provisioning

import (
	"context"
	"fmt"
	"strings"

	"agentforge/internal/logging"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"go.uber.org/zap"
)

// AzureClient implements the CloudClient interface on top of the Azure
// resource-manager SDK
type AzureClient struct {
	subscriptionID string
	groups         *armresources.ResourceGroupsClient
	vnets          *armnetwork.VirtualNetworksClient
	subnets        *armnetwork.SubnetsClient
	publicIPs      *armnetwork.PublicIPAddressesClient
	nics           *armnetwork.InterfacesClient
	vms            *armcompute.VirtualMachinesClient
}

// NewAzureClient creates a new AzureClient using the default credential chain
// (environment, workload identity, managed identity, CLI)
func NewAzureClient(subscriptionID string) (*AzureClient, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Azure credential: %w", err)
	}

	groups, err := armresources.NewResourceGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}

	netFactory, err := armnetwork.NewClientFactory(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network client factory: %w", err)
	}

	computeFactory, err := armcompute.NewClientFactory(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client factory: %w", err)
	}

	return &AzureClient{
		subscriptionID: subscriptionID,
		groups:         groups,
		vnets:          netFactory.NewVirtualNetworksClient(),
		subnets:        netFactory.NewSubnetsClient(),
		publicIPs:      netFactory.NewPublicIPAddressesClient(),
		nics:           netFactory.NewInterfacesClient(),
		vms:            computeFactory.NewVirtualMachinesClient(),
	}, nil
}

// EnsureResourceGroup creates the resource group or reuses an existing one.
// CreateOrUpdate is idempotent at the service side.
func (c *AzureClient) EnsureResourceGroup(ctx context.Context, name, location string, tags map[string]string) error {
	_, err := c.groups.CreateOrUpdate(ctx, name, armresources.ResourceGroup{
		Location: to.Ptr(location),
		Tags:     tagMap(tags),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to ensure resource group %s: %w", name, err)
	}

	logging.Logger().Info("Resource group ready",
		zap.String("resource_group", name),
		zap.String("location", location))
	return nil
}

// CreateVM creates an agent host VM and blocks until Azure reports the
// create operation complete
func (c *AzureClient) CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error) {
	subnetID, err := c.ensureSubnet(ctx, spec)
	if err != nil {
		return nil, err
	}

	publicIPID := ""
	if spec.PublicIP {
		publicIPID, err = c.ensurePublicIP(ctx, spec)
		if err != nil {
			return nil, err
		}
	}

	nicID, err := c.ensureNIC(ctx, spec, subnetID, publicIPID)
	if err != nil {
		return nil, err
	}

	vm := armcompute.VirtualMachine{
		Location: to.Ptr(spec.Location),
		Tags:     tagMap(spec.Tags),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(spec.Size)),
			},
			StorageProfile: c.storageProfile(spec),
			OSProfile:      c.osProfile(spec),
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{
					{
						ID: to.Ptr(nicID),
						Properties: &armcompute.NetworkInterfaceReferenceProperties{
							Primary: to.Ptr(true),
						},
					},
				},
			},
		},
	}

	logging.Logger().Info("Creating VM",
		zap.String("resource_group", spec.ResourceGroup),
		zap.String("vm_name", spec.Name),
		zap.String("size", spec.Size),
		zap.String("platform", string(spec.Platform)))

	poller, err := c.vms.BeginCreateOrUpdate(ctx, spec.ResourceGroup, spec.Name, vm, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create VM %s: %w", spec.Name, err)
	}

	// Completion signal is the service's own; no client-side timeout here
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for VM %s creation: %w", spec.Name, err)
	}

	info := &VMInfo{
		ID:            deref(resp.ID),
		Name:          spec.Name,
		AdminUsername: spec.AdminUsername,
		Status:        "created",
	}
	if resp.Properties != nil && resp.Properties.ProvisioningState != nil {
		info.Status = *resp.Properties.ProvisioningState
	}

	// Endpoint extraction tolerates missing addresses; not every VM has a
	// public IP and a brand new NIC may not report one yet
	c.fillAddresses(ctx, spec, publicIPID, info)

	logging.Logger().Info("VM created",
		zap.String("vm_name", spec.Name),
		zap.String("public_ip", info.PublicIP),
		zap.String("private_ip", info.PrivateIP),
		zap.String("status", info.Status))

	return info, nil
}

// RunCommand executes a script on the named VM via the run-command primitive
// and blocks until the remote side finishes or errors
func (c *AzureClient) RunCommand(ctx context.Context, resourceGroup, vmName string, engine Engine, script string) (*RunResult, error) {
	input := armcompute.RunCommandInput{
		CommandID: to.Ptr(string(engine)),
		Script:    scriptLines(script),
	}

	logging.Logger().Info("Invoking run-command",
		zap.String("resource_group", resourceGroup),
		zap.String("vm_name", vmName),
		zap.String("engine", string(engine)))

	poller, err := c.vms.BeginRunCommand(ctx, resourceGroup, vmName, input, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke run-command on %s: %w", vmName, err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("run-command on %s failed: %w", vmName, err)
	}

	var messages []string
	for _, status := range resp.Value {
		if status != nil && status.Message != nil {
			messages = append(messages, *status.Message)
		}
	}

	return &RunResult{Message: strings.Join(messages, "\n")}, nil
}

// DeleteVM deletes an agent host VM. Used by the operator-facing deprovision
// command only; the orchestrator never tears down on failure.
func (c *AzureClient) DeleteVM(ctx context.Context, resourceGroup, vmName string) error {
	poller, err := c.vms.BeginDelete(ctx, resourceGroup, vmName, nil)
	if err != nil {
		return fmt.Errorf("failed to delete VM %s: %w", vmName, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("failed waiting for VM %s deletion: %w", vmName, err)
	}
	return nil
}

// ensureSubnet resolves the subnet to attach the NIC to. When the caller
// specifies an existing VNet/subnet it is looked up; otherwise a dedicated
// VNet is created alongside the VM.
func (c *AzureClient) ensureSubnet(ctx context.Context, spec VMSpec) (string, error) {
	if spec.VNetName != "" {
		subnetName := spec.SubnetName
		if subnetName == "" {
			subnetName = "default"
		}
		resp, err := c.subnets.Get(ctx, spec.ResourceGroup, spec.VNetName, subnetName, nil)
		if err != nil {
			return "", fmt.Errorf("failed to get subnet %s/%s: %w", spec.VNetName, subnetName, err)
		}
		return deref(resp.ID), nil
	}

	vnetName := spec.Name + "-vnet"
	poller, err := c.vnets.BeginCreateOrUpdate(ctx, spec.ResourceGroup, vnetName, armnetwork.VirtualNetwork{
		Location: to.Ptr(spec.Location),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: []*string{to.Ptr("10.0.0.0/16")},
			},
			Subnets: []*armnetwork.Subnet{
				{
					Name: to.Ptr("default"),
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr("10.0.0.0/24"),
					},
				},
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create vnet %s: %w", vnetName, err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed waiting for vnet %s: %w", vnetName, err)
	}
	if resp.Properties == nil || len(resp.Properties.Subnets) == 0 {
		return "", fmt.Errorf("vnet %s has no subnets", vnetName)
	}
	return deref(resp.Properties.Subnets[0].ID), nil
}

func (c *AzureClient) ensurePublicIP(ctx context.Context, spec VMSpec) (string, error) {
	ipName := spec.Name + "-ip"
	poller, err := c.publicIPs.BeginCreateOrUpdate(ctx, spec.ResourceGroup, ipName, armnetwork.PublicIPAddress{
		Location: to.Ptr(spec.Location),
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create public IP %s: %w", ipName, err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed waiting for public IP %s: %w", ipName, err)
	}
	return deref(resp.ID), nil
}

func (c *AzureClient) ensureNIC(ctx context.Context, spec VMSpec, subnetID, publicIPID string) (string, error) {
	nicName := spec.Name + "-nic"

	ipConfig := &armnetwork.InterfaceIPConfiguration{
		Name: to.Ptr("primary"),
		Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
			Subnet:                    &armnetwork.Subnet{ID: to.Ptr(subnetID)},
			PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
		},
	}
	if publicIPID != "" {
		ipConfig.Properties.PublicIPAddress = &armnetwork.PublicIPAddress{ID: to.Ptr(publicIPID)}
	}

	poller, err := c.nics.BeginCreateOrUpdate(ctx, spec.ResourceGroup, nicName, armnetwork.Interface{
		Location: to.Ptr(spec.Location),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{ipConfig},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create NIC %s: %w", nicName, err)
	}

	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed waiting for NIC %s: %w", nicName, err)
	}
	return deref(resp.ID), nil
}

func (c *AzureClient) storageProfile(spec VMSpec) *armcompute.StorageProfile {
	profile := &armcompute.StorageProfile{
		ImageReference: imageReference(spec.Image),
		OSDisk: &armcompute.OSDisk{
			Name:         to.Ptr(spec.Name + "-osdisk"),
			CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
			ManagedDisk: &armcompute.ManagedDiskParameters{
				StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardLRS),
			},
		},
	}

	if spec.DataDiskGB > 0 {
		profile.DataDisks = []*armcompute.DataDisk{
			{
				Name:         to.Ptr(spec.Name + "-datadisk"),
				Lun:          to.Ptr[int32](0),
				CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesEmpty),
				DiskSizeGB:   to.Ptr(spec.DataDiskGB),
			},
		}
	}

	return profile
}

func (c *AzureClient) osProfile(spec VMSpec) *armcompute.OSProfile {
	profile := &armcompute.OSProfile{
		ComputerName:  to.Ptr(spec.Name),
		AdminUsername: to.Ptr(spec.AdminUsername),
	}

	if spec.Platform == PlatformWindows {
		profile.AdminPassword = to.Ptr(spec.AdminPassword)
		profile.WindowsConfiguration = &armcompute.WindowsConfiguration{
			EnableAutomaticUpdates: to.Ptr(true),
		}
		return profile
	}

	profile.LinuxConfiguration = &armcompute.LinuxConfiguration{
		DisablePasswordAuthentication: to.Ptr(true),
		SSH: &armcompute.SSHConfiguration{
			PublicKeys: []*armcompute.SSHPublicKey{
				{
					Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", spec.AdminUsername)),
					KeyData: to.Ptr(spec.SSHPublicKey),
				},
			},
		},
	}
	return profile
}

// fillAddresses extracts public/private IPs from the NIC and public IP
// resources created for the VM. Missing addresses are reported as empty.
func (c *AzureClient) fillAddresses(ctx context.Context, spec VMSpec, publicIPID string, info *VMInfo) {
	nicResp, err := c.nics.Get(ctx, spec.ResourceGroup, spec.Name+"-nic", nil)
	if err != nil {
		logging.Logger().Warn("failed to read NIC for address extraction",
			zap.String("vm_name", spec.Name),
			zap.Error(err))
	} else if nicResp.Properties != nil {
		for _, cfg := range nicResp.Properties.IPConfigurations {
			if cfg.Properties != nil && cfg.Properties.PrivateIPAddress != nil {
				info.PrivateIP = *cfg.Properties.PrivateIPAddress
				break
			}
		}
	}

	if publicIPID == "" {
		return
	}
	ipResp, err := c.publicIPs.Get(ctx, spec.ResourceGroup, spec.Name+"-ip", nil)
	if err != nil {
		logging.Logger().Warn("failed to read public IP for address extraction",
			zap.String("vm_name", spec.Name),
			zap.Error(err))
		return
	}
	if ipResp.Properties != nil && ipResp.Properties.IPAddress != nil {
		info.PublicIP = *ipResp.Properties.IPAddress
	}
}

// imageReference parses an image URN of the form publisher:offer:sku:version.
// Anything else is treated as a managed image resource ID.
func imageReference(image string) *armcompute.ImageReference {
	parts := strings.Split(image, ":")
	if len(parts) == 4 {
		return &armcompute.ImageReference{
			Publisher: to.Ptr(parts[0]),
			Offer:     to.Ptr(parts[1]),
			SKU:       to.Ptr(parts[2]),
			Version:   to.Ptr(parts[3]),
		}
	}
	return &armcompute.ImageReference{ID: to.Ptr(image)}
}

// scriptLines splits an assembled remote script into the line slice the
// run-command API expects
func scriptLines(script string) []*string {
	raw := strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n")
	lines := make([]*string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, to.Ptr(line))
	}
	return lines
}

func tagMap(tags map[string]string) map[string]*string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]*string, len(tags))
	for k, v := range tags {
		out[k] = to.Ptr(v)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
